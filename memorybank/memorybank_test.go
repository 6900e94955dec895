package memorybank

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBank(t *testing.T) *Bank {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory_bank.json")
	return New(func(o *Options) {
		o.Path = path
	})
}

func TestBank_AddAndGet(t *testing.T) {
	bank := newTestBank(t)

	id := bank.Add("teacher1", "exam_analysis", map[string]any{"subject": "physics"}, []string{"physics", "2024"})
	require.NotEmpty(t, id)

	entries := bank.Get("teacher1", Query{})
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "exam_analysis", entries[0].Type)
	assert.Equal(t, "physics", entries[0].Content["subject"])
	assert.Equal(t, 1, entries[0].AccessCount)
	assert.NotNil(t, entries[0].LastAccessed)

	// Second read bumps the counter again.
	entries = bank.Get("teacher1", Query{})
	assert.Equal(t, 2, entries[0].AccessCount)
}

func TestBank_GetFilters(t *testing.T) {
	bank := newTestBank(t)

	bank.Add("teacher1", "exam_analysis", map[string]any{"n": 1}, []string{"physics"})
	bank.Add("teacher1", "study_plan", map[string]any{"n": 2}, []string{"physics", "mechanics"})
	bank.Add("teacher1", "study_plan", map[string]any{"n": 3}, []string{"chemistry"})

	byType := bank.Get("teacher1", Query{Type: "study_plan"})
	assert.Len(t, byType, 2)

	byTags := bank.Get("teacher1", Query{Tags: []string{"physics", "mechanics"}})
	require.Len(t, byTags, 1)
	assert.Equal(t, float64(2), toFloat(byTags[0].Content["n"]))

	assert.Empty(t, bank.Get("other", Query{}))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}

func TestBank_GetOrdersNewestFirst(t *testing.T) {
	bank := newTestBank(t)

	bank.Add("teacher1", "note", map[string]any{"n": "old"}, nil)
	time.Sleep(5 * time.Millisecond)
	bank.Add("teacher1", "note", map[string]any{"n": "new"}, nil)

	entries := bank.Get("teacher1", Query{})
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].Content["n"])
	assert.Equal(t, "old", entries[1].Content["n"])
}

func TestBank_GetLimit(t *testing.T) {
	bank := newTestBank(t)
	for i := 0; i < 12; i++ {
		bank.Add("teacher1", "note", map[string]any{"i": i}, nil)
	}

	assert.Len(t, bank.Get("teacher1", Query{}), 10)
	assert.Len(t, bank.Get("teacher1", Query{Limit: 3}), 3)
}

func TestBank_SearchScoring(t *testing.T) {
	bank := newTestBank(t)

	bank.Add("teacher1", "note", map[string]any{"text": "quantum mechanics intro"}, nil)
	tagged := bank.Add("teacher1", "note", map[string]any{"text": "advanced topics"}, []string{"quantum"})
	bank.Add("teacher1", "note", map[string]any{"text": "organic chemistry"}, nil)

	results := bank.Search("teacher1", "quantum", 0)
	require.Len(t, results, 2)
	// Tag matches score double, so the tagged entry ranks first.
	assert.Equal(t, tagged, results[0].ID)
}

func TestBank_SearchCaseInsensitive(t *testing.T) {
	bank := newTestBank(t)
	bank.Add("teacher1", "note", map[string]any{"text": "Quantum Mechanics"}, nil)

	assert.Len(t, bank.Search("teacher1", "QUANTUM", 5), 1)
	assert.Empty(t, bank.Search("teacher1", "biology", 5))
}

func TestBank_Update(t *testing.T) {
	bank := newTestBank(t)
	id := bank.Add("teacher1", "note", map[string]any{"a": "1", "b": "2"}, []string{"x"})

	ok := bank.Update("teacher1", id, map[string]any{"b": "3", "c": "4"}, []string{"y"})
	require.True(t, ok)

	entries := bank.Get("teacher1", Query{})
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].Content["a"])
	assert.Equal(t, "3", entries[0].Content["b"])
	assert.Equal(t, "4", entries[0].Content["c"])
	assert.Equal(t, []string{"y"}, entries[0].Tags)
	assert.NotNil(t, entries[0].UpdatedAt)

	// Nil tags leave existing tags untouched.
	require.True(t, bank.Update("teacher1", id, map[string]any{"a": "5"}, nil))
	entries = bank.Get("teacher1", Query{})
	assert.Equal(t, []string{"y"}, entries[0].Tags)

	assert.False(t, bank.Update("teacher1", "missing", nil, nil))
	assert.False(t, bank.Update("other", id, nil, nil))
}

func TestBank_Delete(t *testing.T) {
	bank := newTestBank(t)
	id := bank.Add("teacher1", "note", map[string]any{"n": 1}, nil)

	assert.True(t, bank.Delete("teacher1", id))
	assert.False(t, bank.Delete("teacher1", id))
	assert.Empty(t, bank.Get("teacher1", Query{}))
}

func TestBank_Summary(t *testing.T) {
	bank := newTestBank(t)

	hot := bank.Add("teacher1", "exam_analysis", map[string]any{"n": 1}, []string{"hot"})
	for i := 0; i < 7; i++ {
		bank.Add("teacher1", "study_plan", map[string]any{"i": i}, nil)
	}
	// Access the first entry repeatedly so it tops the ranking.
	for i := 0; i < 3; i++ {
		bank.Get("teacher1", Query{Type: "exam_analysis"})
	}

	summary := bank.Summary("teacher1")
	assert.Equal(t, 8, summary.TotalMemories)
	assert.Equal(t, 1, summary.ByType["exam_analysis"])
	assert.Equal(t, 7, summary.ByType["study_plan"])
	require.Len(t, summary.MostAccessed, 5)
	assert.Equal(t, hot, summary.MostAccessed[0].ID)
}

func TestBank_CompactContext(t *testing.T) {
	bank := newTestBank(t)

	bank.Add("teacher1", "exam_analysis", map[string]any{"subject": "physics"}, nil)
	bank.Add("teacher1", "study_plan", map[string]any{"focus": "thermodynamics"}, nil)

	ctx := bank.CompactContext("teacher1", nil, 0)
	assert.Contains(t, ctx, "Historical Context:")
	assert.Contains(t, ctx, "[exam_analysis]")
	assert.Contains(t, ctx, "[study_plan]")

	// Type filter drops non-matching entries.
	filtered := bank.CompactContext("teacher1", []string{"study_plan"}, 0)
	assert.NotContains(t, filtered, "[exam_analysis]")
	assert.Contains(t, filtered, "[study_plan]")

	// A tiny token budget yields the header only.
	tiny := bank.CompactContext("teacher1", nil, 5)
	assert.Equal(t, "Historical Context:", tiny)
}

func TestBank_ClearUser(t *testing.T) {
	bank := newTestBank(t)
	bank.Add("teacher1", "note", map[string]any{"n": 1}, nil)
	bank.Add("teacher1", "note", map[string]any{"n": 2}, nil)
	bank.Add("teacher2", "note", map[string]any{"n": 3}, nil)

	assert.Equal(t, 2, bank.ClearUser("teacher1"))
	assert.Equal(t, 0, bank.ClearUser("teacher1"))
	assert.Len(t, bank.Get("teacher2", Query{}), 1)
}

func TestBank_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory_bank.json")
	first := New(func(o *Options) { o.Path = path })
	id := first.Add("teacher1", "exam_analysis", map[string]any{"subject": "physics"}, []string{"physics"})

	second := New(func(o *Options) { o.Path = path })
	entries := second.Get("teacher1", Query{})
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "physics", entries[0].Content["subject"])
	assert.Equal(t, []string{"physics"}, entries[0].Tags)
}

func TestBank_MissingFileStartsEmpty(t *testing.T) {
	bank := New(func(o *Options) {
		o.Path = filepath.Join(t.TempDir(), "does", "not", "exist.json")
	})
	assert.Empty(t, bank.Get("teacher1", Query{}))
}
