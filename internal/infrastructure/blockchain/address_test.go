package blockchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"lowercase", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"padded", "  0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed ", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"no prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "", false},
		{"too short", "0x5aaeb6", "", false},
		{"not hex", "0xzzaeb6053f3e94c9b9a09f33669435e7ef1beaed", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeAddress(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsZeroAddress(t *testing.T) {
	assert.True(t, IsZeroAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, IsZeroAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
}
