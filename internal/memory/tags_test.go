package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	cases := map[string]string{
		"":                     "",
		" , ,":                 "",
		"beta,alpha":           "alpha,beta",
		" beta ,\talpha\n,beta": "alpha,beta",
		"Zed,alpha":            "Zed,alpha",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTags(in), "NormalizeTags(%q)", in)
	}
}

func TestMatchesSubset(t *testing.T) {
	tests := []struct {
		search, entry string
		want          bool
	}{
		{"", "", true},
		{"", "alpha", true},
		{"alpha", "", false},
		{"alpha", "alpha", true},
		{"alpha", "alpha,beta", true},
		{"beta, alpha", "alpha,beta,gamma", true},
		{"alpha,delta", "alpha,beta", false},
		{"alp", "alpha", false},
		{"Alpha", "alpha", false},
		{" alpha ", "alpha", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(tt.search, tt.entry), "Matches(%q, %q)", tt.search, tt.entry)
	}
}

func TestBuildAndParseKey(t *testing.T) {
	key, err := BuildKey("beta, alpha,alpha", 42)
	require.NoError(t, err)
	assert.Equal(t, "alpha,beta,iteration_42", key)

	tags, n, err := ParseKey(key)
	require.NoError(t, err)
	assert.Equal(t, "alpha,beta", tags)
	assert.Equal(t, uint64(42), n)

	_, err = BuildKey(" , ", 1)
	assert.ErrorIs(t, err, ErrEmptyTags)
}

func TestParseKeyMalformed(t *testing.T) {
	for _, key := range []string{"", "alpha", "alpha,beta", "alpha,iteration_", "alpha,iteration_x", "alpha,iteration_-1", "iteration_3,alpha"} {
		_, _, err := ParseKey(key)
		assert.True(t, errors.Is(err, ErrMalformedKey), "ParseKey(%q) err = %v", key, err)
	}

	tags, n, err := ParseKey("iteration_7")
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.Equal(t, uint64(7), n)
}

func TestHasTagPrefix(t *testing.T) {
	assert.True(t, hasTagPrefix("alpha,beta,iteration_3", "alpha"))
	assert.True(t, hasTagPrefix("alpha,beta,iteration_3", "alpha,beta"))
	assert.True(t, hasTagPrefix("alpha", "alpha"))
	assert.False(t, hasTagPrefix("alphabet,iteration_1", "alpha"))
	assert.False(t, hasTagPrefix("beta,iteration_1", "alpha"))
}
