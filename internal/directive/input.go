package directive

// Action types the agent may emit.
const (
	ActionWorkingAdd    = "working_memory_add"
	ActionWorkingRemove = "working_memory_remove"
	ActionStorageSave   = "storage_save"
	ActionStorageLoad   = "storage_load"
	ActionStorageSearch = "storage_search"
	ActionPage          = "page"
)

// Input is one cycle's worth of memory directives, read as JSON.
type Input struct {
	Iteration uint64 `json:"iteration"`
	// Phase, when set, is recorded on the engine before any action runs.
	Phase   string   `json:"phase,omitempty"`
	Actions []Action `json:"actions"`
}

// Action is a single directive. Value is ignored by remove, load and page.
type Action struct {
	Type  string `json:"type"`
	Tags  string `json:"tags"`
	Value string `json:"value,omitempty"`
}

// needsValue reports whether the action type stores a value.
func (a *Action) needsValue() bool {
	return a.Type == ActionWorkingAdd || a.Type == ActionStorageSave
}
