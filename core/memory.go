package core

import "context"

// Snippet is a retrieved knowledge fragment. Snippets augment the requesting
// agent's next reasoning call only; they are never appended to the transcript.
type Snippet struct {
	Content  string
	SourceID string
	// Score is the relevance in [0,1], higher is more relevant.
	Score float64
	// Metadata carries source-specific attributes (section, chunk index, ...).
	Metadata map[string]string
}

// MemoryStore retrieves ranked knowledge snippets for a query. Query results
// are ordered by score descending with ties broken by insertion order, and
// must be stable across repeated calls for a fixed corpus.
type MemoryStore interface {
	// Add stores a knowledge fragment with optional metadata.
	Add(ctx context.Context, content string, metadata map[string]string) error
	// Query returns up to k snippets ranked by relevance.
	Query(ctx context.Context, text string, k int) ([]Snippet, error)
}
