package tokencount_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codenerd-labs/diffctx/internal/tokencount"
)

func TestEstimate_EmptyStringIsZero(t *testing.T) {
	assert.Equal(t, 0, tokencount.Estimate(""))
}

func TestEstimate_DenseCodeUsesSplitCount(t *testing.T) {
	// Lots of short tokens and punctuation: the split estimator dominates
	// the 4-chars-per-token heuristic.
	s := "a=b;c=d;e=f;"
	byByte := len(s) / 4
	got := tokencount.Estimate(s)
	assert.Greater(t, got, byByte)
}

func TestEstimate_LongWordUsesByteHeuristic(t *testing.T) {
	// One long run of letters: 1 split token, but many chars.
	s := strings.Repeat("x", 400)
	assert.Equal(t, 100, tokencount.Estimate(s))
}

func TestEstimate_StableAcrossCalls(t *testing.T) {
	s := "func Add(a, b int) int {\n\treturn a + b\n}\n"
	assert.Equal(t, tokencount.Estimate(s), tokencount.Estimate(s))
}

func TestEstimate_WhitespaceOnlyUsesByteHeuristic(t *testing.T) {
	// No split tokens, but 8 characters: 8 / 4 = 2.
	assert.Equal(t, 2, tokencount.Estimate("   \n\t  \n"))
}

func TestEstimate_MonotoneUnderConcatenation(t *testing.T) {
	a := "func helper() int { return 1 }\n"
	assert.GreaterOrEqual(t, tokencount.Estimate(a+a), tokencount.Estimate(a))
}

func TestEstimateLines_MatchesJoinedEstimate(t *testing.T) {
	lines := []string{"alpha beta", "gamma delta"}
	assert.Equal(t, tokencount.Estimate("alpha beta\ngamma delta"), tokencount.EstimateLines(lines))
}
