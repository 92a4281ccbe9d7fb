package ratings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zmap/zlint/v3/lint"
)

func TestParentRating_WorstChildWins(t *testing.T) {
	children := map[string]Verdict{
		"a": {Status: "secure", Rating: 3, PFS: true},
		"b": {Status: "weak", Rating: 1},
		"c": {Status: "secure", Rating: 2},
	}

	parent := ParentRating(children)
	assert.Equal(t, "weak", parent.Status)
	assert.Equal(t, 1, parent.Rating)
	assert.True(t, parent.PFS)
	assert.Len(t, parent.Children, 3)
}

func TestParentRating_Empty(t *testing.T) {
	parent := ParentRating(map[string]Verdict{})
	assert.Equal(t, "unknown", parent.Status)
	assert.False(t, parent.PFS)
}

func TestVerdictFromLintStatus(t *testing.T) {
	// Exercised indirectly via Evaluate in integration contexts; here we
	// only check the rating ordering invariant the mapping must preserve.
	secure := verdictFromLintStatus(lint.Pass)
	insecure := verdictFromLintStatus(lint.Error)
	assert.Greater(t, secure.Rating, insecure.Rating)
}
