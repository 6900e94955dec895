// Package memorybank provides long-term, per-user memory storage with
// tag-based retrieval, keyword search and context compaction for prompt
// assembly. Entries persist to a JSON file between process runs.
package memorybank

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/profilermesh/logging"
)

// Entry is one stored memory.
type Entry struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Type         string         `json:"type"`
	Content      map[string]any `json:"content"`
	Tags         []string       `json:"tags"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at,omitempty"`
	AccessCount  int            `json:"access_count"`
	LastAccessed *time.Time     `json:"last_accessed,omitempty"`
}

// Query filters a Get call. The zero value matches everything.
type Query struct {
	// Type restricts results to one memory type when non-empty.
	Type string
	// Tags restricts results to entries carrying every listed tag.
	Tags []string
	// Limit caps the number of results. Zero means the default of 10.
	Limit int
}

// Summary aggregates a user's stored memories.
type Summary struct {
	TotalMemories int            `json:"total_memories"`
	ByType        map[string]int `json:"by_type"`
	MostAccessed  []*Entry       `json:"most_accessed"`
}

// Options configure a Bank.
type Options struct {
	// Path is the JSON file backing the bank.
	Path string
	// Logger receives load/save warnings. Defaults to a no-op logger.
	Logger logging.Logger
}

// Bank is a process-wide memory store keyed by user id. All operations are
// safe for concurrent use; every mutation is persisted to disk immediately.
// Persistence failures are logged as warnings and never fail the operation,
// so the in-process state stays authoritative.
type Bank struct {
	mu       sync.Mutex
	path     string
	logger   logging.Logger
	memories map[string][]*Entry
}

// New creates a Bank backed by the file at Options.Path, loading any
// previously persisted entries. A missing or unreadable file starts empty.
func New(optFns ...func(o *Options)) *Bank {
	opts := Options{
		Path:   "memory_bank.json",
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	b := &Bank{
		path:     opts.Path,
		logger:   opts.Logger,
		memories: make(map[string][]*Entry),
	}
	b.load()
	return b
}

func (b *Bank) load() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn("failed to load memory bank", "path", b.path, "error", err.Error())
		}
		return
	}
	if err := json.Unmarshal(data, &b.memories); err != nil {
		b.logger.Warn("failed to decode memory bank", "path", b.path, "error", err.Error())
		b.memories = make(map[string][]*Entry)
	}
}

// saveLocked persists the full bank; caller must hold the lock.
func (b *Bank) saveLocked() {
	data, err := json.MarshalIndent(b.memories, "", "  ")
	if err != nil {
		b.logger.Warn("failed to encode memory bank", "error", err.Error())
		return
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.logger.Warn("failed to create memory bank directory", "path", dir, "error", err.Error())
			return
		}
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		b.logger.Warn("failed to save memory bank", "path", b.path, "error", err.Error())
	}
}

// Add stores a new memory for the user and returns its id.
func (b *Bank) Add(userID, memoryType string, content map[string]any, tags []string) string {
	entry := &Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      memoryType,
		Content:   content,
		Tags:      append([]string{}, tags...),
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.memories[userID] = append(b.memories[userID], entry)
	b.saveLocked()
	return entry.ID
}

// Get returns the user's memories matching the query, most recent first.
// Returned entries have their access counters bumped.
func (b *Bank) Get(userID string, q Query) []*Entry {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []*Entry
	for _, m := range b.memories[userID] {
		if q.Type != "" && m.Type != q.Type {
			continue
		}
		if !hasAllTags(m.Tags, q.Tags) {
			continue
		}
		matched = append(matched, m)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	now := time.Now()
	out := make([]*Entry, len(matched))
	for i, m := range matched {
		m.AccessCount++
		m.LastAccessed = &now
		out[i] = cloneEntry(m)
	}
	if len(matched) > 0 {
		b.saveLocked()
	}
	return out
}

// Search performs a case-insensitive keyword search over content and tags.
// Tag hits score double, results come back by descending relevance.
func (b *Bank) Search(userID, query string, limit int) []*Entry {
	if limit <= 0 {
		limit = 5
	}
	needle := strings.ToLower(query)

	type scored struct {
		score int
		entry *Entry
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []scored
	for _, m := range b.memories[userID] {
		contentJSON, err := json.Marshal(m.Content)
		if err != nil {
			continue
		}
		content := strings.ToLower(string(contentJSON))
		tags := strings.ToLower(strings.Join(m.Tags, " "))

		score := strings.Count(content, needle) + strings.Count(tags, needle)*2
		if score > 0 {
			matches = append(matches, scored{score: score, entry: m})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*Entry, len(matches))
	for i, m := range matches {
		out[i] = cloneEntry(m.entry)
	}
	return out
}

// Update merges content into an existing memory and optionally replaces its
// tags. It reports whether the memory was found.
func (b *Bank) Update(userID, memoryID string, content map[string]any, tags []string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range b.memories[userID] {
		if m.ID != memoryID {
			continue
		}
		for k, v := range content {
			m.Content[k] = v
		}
		if tags != nil {
			m.Tags = append([]string{}, tags...)
		}
		now := time.Now()
		m.UpdatedAt = &now
		b.saveLocked()
		return true
	}
	return false
}

// Delete removes a memory, reporting whether it existed.
func (b *Bank) Delete(userID, memoryID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.memories[userID]
	for i, m := range entries {
		if m.ID == memoryID {
			b.memories[userID] = append(entries[:i], entries[i+1:]...)
			b.saveLocked()
			return true
		}
	}
	return false
}

// Summary returns aggregate statistics for a user, including the five most
// accessed memories.
func (b *Bank) Summary(userID string) Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.memories[userID]
	byType := make(map[string]int, len(entries))
	for _, m := range entries {
		byType[m.Type]++
	}

	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AccessCount > sorted[j].AccessCount })
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}

	most := make([]*Entry, len(sorted))
	for i, m := range sorted {
		most[i] = cloneEntry(m)
	}

	return Summary{
		TotalMemories: len(entries),
		ByType:        byType,
		MostAccessed:  most,
	}
}

// CompactContext folds the user's recent memories into a prompt-ready
// context block. maxTokens is a rough budget at four characters per token;
// entries that would exceed it are dropped.
func (b *Bank) CompactContext(userID string, memoryTypes []string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	entries := b.Get(userID, Query{Limit: 20})
	if len(memoryTypes) > 0 {
		allowed := make(map[string]bool, len(memoryTypes))
		for _, t := range memoryTypes {
			allowed[t] = true
		}
		filtered := entries[:0]
		for _, m := range entries {
			if allowed[m.Type] {
				filtered = append(filtered, m)
			}
		}
		entries = filtered
	}

	parts := []string{"Historical Context:"}
	length := len(parts[0])
	maxChars := maxTokens * 4

	for _, m := range entries {
		contentJSON, err := json.Marshal(m.Content)
		if err != nil {
			continue
		}
		part := fmt.Sprintf("\n- [%s] %s", m.Type, contentJSON)
		if length+len(part) > maxChars {
			break
		}
		parts = append(parts, part)
		length += len(part)
	}

	return strings.Join(parts, "\n")
}

// ClearUser removes every memory of a user, returning how many were dropped.
func (b *Bank) ClearUser(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := len(b.memories[userID])
	if count > 0 || b.memories[userID] != nil {
		delete(b.memories, userID)
		b.saveLocked()
	}
	return count
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cloneEntry(m *Entry) *Entry {
	out := *m
	out.Content = make(map[string]any, len(m.Content))
	for k, v := range m.Content {
		out.Content[k] = v
	}
	out.Tags = append([]string{}, m.Tags...)
	return &out
}
