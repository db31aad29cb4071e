package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
)

// ChromemConfig holds configuration for the chromem-go embedded vector store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the store
	// purely in memory.
	Path string
	// Compress enables gzip compression for persisted data.
	Compress bool
	// Collection is the collection name. Default "devsquad_knowledge".
	Collection string
	// ScoreThreshold drops results whose similarity falls below it.
	ScoreThreshold float64
	// EmbeddingDim sizes the default hashed embedding.
	EmbeddingDim int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "devsquad_knowledge"
	}
	if c.EmbeddingDim == 0 {
		c.EmbeddingDim = DefaultEmbeddingDim
	}
}

// ChromemStore implements core.MemoryStore on top of chromem-go, an
// embeddable pure-Go vector database (no external service, optional gob
// persistence). Ranking is similarity descending; equal similarities fall
// back to insertion order so a fixed corpus always yields the same order.
type ChromemStore struct {
	collection *chromem.Collection
	config     ChromemConfig
	logger     logging.Logger

	mu  sync.Mutex
	seq int
}

var _ core.MemoryStore = (*ChromemStore)(nil)

// ChromemOptions configures construction of a ChromemStore.
type ChromemOptions struct {
	// Embedding overrides the default hashed embedding function.
	Embedding chromem.EmbeddingFunc
	// Logger receives store diagnostics.
	Logger logging.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, optFns ...func(o *ChromemOptions)) (*ChromemStore, error) {
	config.ApplyDefaults()

	opts := ChromemOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Embedding == nil {
		opts.Embedding = NewHashedEmbedding(config.EmbeddingDim)
	}

	var db *chromem.DB
	if config.Path != "" {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, opts.Embedding)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", config.Collection, err)
	}

	store := &ChromemStore{
		collection: collection,
		config:     config,
		logger:     opts.Logger,
		seq:        collection.Count(),
	}
	store.logger.Debug("chromem store initialized",
		"path", config.Path, "collection", config.Collection, "documents", store.seq)
	return store, nil
}

// Add implements core.MemoryStore.
func (s *ChromemStore) Add(ctx context.Context, content string, metadata map[string]string) error {
	s.mu.Lock()
	id := fmt.Sprintf("mem-%08d", s.seq)
	s.seq++
	s.mu.Unlock()

	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	if err := s.collection.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: md,
	}); err != nil {
		return fmt.Errorf("adding document %s: %w", id, err)
	}
	return nil
}

// Query implements core.MemoryStore.
func (s *ChromemStore) Query(ctx context.Context, text string, k int) ([]core.Snippet, error) {
	if k <= 0 {
		return nil, nil
	}
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	// chromem leaves equal-similarity ordering unspecified; document IDs are
	// insertion-sequenced, so an ID tie-break restores the contract.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	out := make([]core.Snippet, 0, len(results))
	for _, r := range results {
		score := float64(r.Similarity)
		if score < s.config.ScoreThreshold {
			continue
		}
		md := make(map[string]string, len(r.Metadata))
		for key, v := range r.Metadata {
			md[key] = v
		}
		out = append(out, core.Snippet{
			Content:  r.Content,
			SourceID: r.ID,
			Score:    score,
			Metadata: md,
		})
	}
	return out, nil
}

// Len returns the number of stored documents.
func (s *ChromemStore) Len() int { return s.collection.Count() }
