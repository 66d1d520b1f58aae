package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
		ok   bool
	}{
		{"us separators", "$1,234.56", 1234.56, true},
		{"european separators", "1.234,56", 1234.56, true},
		{"decimal comma", "1800,50", 1800.50, true},
		{"european thousands", "1.234.567", 1234567, true},
		{"ambiguous dot thousands", "1.234", 1234, true},
		{"k multiplier", "10k", 10000, true},
		{"fractional multiplier", "2.5m", 2500000, true},
		{"billion", "1b", 1e9, true},
		{"emoji currency", "💰 5,000", 5000, true},
		{"gift icon prize", "🎁 $90", 90, true},
		{"trophy icon prize", "🏆 1,250", 1250, true},
		{"plain integer", "42", 42, true},
		{"spaced currency", "$ 900", 900, true},
		{"not a number", "abc", 0, false},
		{"empty", "", 0, false},
		{"negative rejected", "-50", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestFindAmounts(t *testing.T) {
	got := FindAmounts("Wagered $12,500.50 for a $300 prize")
	require.Len(t, got, 2)
	assert.InDelta(t, 12500.50, got[0], 0.001)
	assert.InDelta(t, 300, got[1], 0.001)

	assert.Empty(t, FindAmounts("no numbers here"))
}

func TestParseRank(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#04.", 4},
		{"04", 4},
		{"4.", 4},
		{"4)", 4},
		{"1st", 1},
		{"2nd", 2},
		{"III", 3},
		{"x", 10},
		{"# 7", 7},
		{"PlayerX", 0},
		{"$5", 0},
		{"", 0},
		{"0", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRank(tt.in), "input %q", tt.in)
	}
}

func TestIsRankLike(t *testing.T) {
	assert.True(t, IsRankLike(1))
	assert.True(t, IsRankLike(100))
	assert.False(t, IsRankLike(101))
	assert.False(t, IsRankLike(2.5))
	assert.False(t, IsRankLike(0))
}

func TestLooksLikeMoney(t *testing.T) {
	assert.True(t, LooksLikeMoney("$500"))
	assert.True(t, LooksLikeMoney("1,234"))
	assert.True(t, LooksLikeMoney("10k wagered"))
	assert.False(t, LooksLikeMoney("no amounts"))
}
