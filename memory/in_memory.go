package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/forgeworks/devsquad/core"
)

// storedEntry is the internal representation kept by KeywordStore.
type storedEntry struct {
	id       string
	seq      int
	content  string
	terms    map[string]struct{}
	metadata map[string]string
}

// KeywordStore is a process-local core.MemoryStore scoring by term overlap:
// the score of an entry is the fraction of distinct query terms it contains.
// Ordering is score descending with insertion order breaking ties, so results
// are stable across repeated calls. Suitable for tests and small corpora;
// swap in ChromemStore for semantic retrieval.
//
// Concurrency: protected by RWMutex.
type KeywordStore struct {
	mu      sync.RWMutex
	entries []storedEntry
}

var _ core.MemoryStore = (*KeywordStore)(nil)

// NewKeywordStore creates an empty keyword store.
func NewKeywordStore() *KeywordStore { return &KeywordStore{} }

// Add implements core.MemoryStore.
func (s *KeywordStore) Add(_ context.Context, content string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := len(s.entries)
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	s.entries = append(s.entries, storedEntry{
		id:       fmt.Sprintf("mem_%d", seq),
		seq:      seq,
		content:  content,
		terms:    termSet(content),
		metadata: md,
	})
	return nil
}

// Query implements core.MemoryStore.
func (s *KeywordStore) Query(_ context.Context, text string, k int) ([]core.Snippet, error) {
	if k <= 0 {
		return nil, nil
	}
	queryTerms := termSet(text)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		entry storedEntry
		score float64
	}
	var hits []scored
	for _, e := range s.entries {
		matched := 0
		for t := range queryTerms {
			if _, ok := e.terms[t]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, scored{entry: e, score: float64(matched) / float64(len(queryTerms))})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.seq < hits[j].entry.seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]core.Snippet, 0, len(hits))
	for _, h := range hits {
		md := make(map[string]string, len(h.entry.metadata))
		for key, v := range h.entry.metadata {
			md[key] = v
		}
		out = append(out, core.Snippet{
			Content:  h.entry.content,
			SourceID: h.entry.id,
			Score:    h.score,
			Metadata: md,
		})
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *KeywordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// termSet lowercases and splits text into its distinct alphanumeric terms.
func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	}) {
		set[f] = struct{}{}
	}
	return set
}
