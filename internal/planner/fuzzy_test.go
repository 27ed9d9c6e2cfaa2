package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	t.Run("Identical", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 100, Similarity("Fund Accounting", "Fund Accounting"))
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 100, Similarity("fund accounting", "FUND ACCOUNTING"))
	})

	t.Run("SingleTypo", func(t *testing.T) {
		t.Parallel()
		// One deletion across 15 runes.
		assert.Equal(t, 93, Similarity("fund acounting", "fund accounting"))
	})

	t.Run("TwoTypos", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 90, Similarity("Portfolo Managment", "Portfolio Management"))
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0, Similarity("", ""))
		assert.Equal(t, 0, Similarity("x", ""))
		assert.Equal(t, 0, Similarity("", "x"))
	})

	t.Run("Disjoint", func(t *testing.T) {
		t.Parallel()
		assert.Less(t, Similarity("abc", "xyz"), 10)
	})
}

func TestBestMatch(t *testing.T) {
	t.Parallel()

	catalog := []string{"Fund Accounting", "Portfolio Management", "Trade Settlement"}

	t.Run("FindsClosest", func(t *testing.T) {
		t.Parallel()
		name, score := BestMatch("fund acounting", catalog)
		assert.Equal(t, "Fund Accounting", name)
		assert.GreaterOrEqual(t, score, 90)
	})

	t.Run("EmptyCatalog", func(t *testing.T) {
		t.Parallel()
		name, score := BestMatch("anything", nil)
		assert.Equal(t, "", name)
		assert.Equal(t, 0, score)
	})

	t.Run("TieKeepsFirst", func(t *testing.T) {
		t.Parallel()
		name, _ := BestMatch("zzz", []string{"aaa", "bbb"})
		assert.Equal(t, "aaa", name)
	})
}
