package memory

// bytesPerToken approximates the model tokenizer.
const bytesPerToken = 4

// SizeOf returns the serialized size of tier: the sum of key and value
// lengths of its entries. It is never cached.
func (s *Store) SizeOf(tier Tier) uint64 {
	if !tier.Valid() {
		return 0
	}
	var n uint64
	for i := range s.tiers[tier] {
		n += uint64(s.tiers[tier][i].Footprint())
	}
	return n
}

// EstimateTokens converts a byte count to an approximate token count.
func EstimateTokens(bytes uint64) uint64 {
	return bytes / bytesPerToken
}

// TierStats summarizes one tier.
type TierStats struct {
	Tier    Tier   `json:"-"`
	Name    string `json:"tier"`
	Entries int    `json:"entries"`
	Bytes   uint64 `json:"bytes"`
	Tokens  uint64 `json:"tokens"`
}

// Stats reports count, size and token estimate for every tier.
func (s *Store) Stats() []TierStats {
	out := make([]TierStats, 0, len(Tiers))
	for _, t := range Tiers {
		b := s.SizeOf(t)
		out = append(out, TierStats{
			Tier:    t,
			Name:    t.String(),
			Entries: s.Len(t),
			Bytes:   b,
			Tokens:  EstimateTokens(b),
		})
	}
	return out
}
