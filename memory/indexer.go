package memory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is carried from the tail of one chunk into the next.
	DefaultChunkOverlap = 100
)

// yamlBlockRe matches the first fenced yaml metadata block within a section.
var yamlBlockRe = regexp.MustCompile("(?s)```yaml\n(.*?)\n```")

// Indexer splits Markdown documents by level-2 headers, extracts embedded
// YAML metadata blocks, chunks the remaining content and stores the chunks
// in a MemoryStore. Each chunk carries source, section and chunk indices as
// metadata, merged with whatever the section's YAML block declared.
type Indexer struct {
	store        core.MemoryStore
	chunkSize    int
	chunkOverlap int
	logger       logging.Logger
}

// IndexerOptions configures an Indexer.
type IndexerOptions struct {
	ChunkSize    int
	ChunkOverlap int
	Logger       logging.Logger
}

// NewIndexer creates an indexer writing into store.
func NewIndexer(store core.MemoryStore, optFns ...func(o *IndexerOptions)) *Indexer {
	opts := IndexerOptions{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 4
	}
	return &Indexer{
		store:        store,
		chunkSize:    opts.ChunkSize,
		chunkOverlap: opts.ChunkOverlap,
		logger:       opts.Logger,
	}
}

// IndexDir indexes every .md, .txt and .html file under root, returning the
// number of stored chunks. Unreadable files are skipped with a log entry.
func (ix *Indexer) IndexDir(ctx context.Context, root string) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt", ".html":
		default:
			return nil
		}
		n, err := ix.IndexFile(ctx, path)
		if err != nil {
			ix.logger.Warn("skipping unindexable document", "path", path, "error", err)
			return nil
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("walking %s: %w", root, err)
	}
	ix.logger.Info("document corpus indexed", "root", root, "chunks", total)
	return total, nil
}

// IndexFile indexes one document, returning the number of stored chunks.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return ix.IndexText(ctx, path, string(raw))
}

// IndexText indexes already-loaded document content under the given source id.
func (ix *Indexer) IndexText(ctx context.Context, source, content string) (int, error) {
	total := 0
	for sectionIdx, section := range splitSections(content) {
		sectionMeta, cleaned := extractYAMLBlock(section)
		if cleaned == "" {
			continue
		}
		for chunkIdx, chunk := range ix.chunk(cleaned) {
			md := map[string]string{
				"source":        source,
				"section_index": strconv.Itoa(sectionIdx),
				"chunk_index":   strconv.Itoa(chunkIdx),
			}
			for k, v := range sectionMeta {
				md[k] = v
			}
			if err := ix.store.Add(ctx, chunk, md); err != nil {
				return total, fmt.Errorf("storing chunk %d of %s: %w", chunkIdx, source, err)
			}
			total++
		}
	}
	return total, nil
}

// splitSections splits text at level-2 Markdown headers, keeping the header
// line with its section. Content before the first header forms section 0.
func splitSections(text string) []string {
	var sections []string
	rest := text
	for {
		idx := strings.Index(rest, "\n## ")
		if idx < 0 {
			break
		}
		if head := strings.TrimSpace(rest[:idx]); head != "" {
			sections = append(sections, head)
		}
		rest = rest[idx+1:]
	}
	if tail := strings.TrimSpace(rest); tail != "" {
		sections = append(sections, tail)
	}
	return sections
}

// extractYAMLBlock parses the first fenced yaml block out of a section,
// returning its flattened key/value pairs and the section text with the
// block removed. A malformed block is dropped without metadata.
func extractYAMLBlock(section string) (map[string]string, string) {
	m := yamlBlockRe.FindStringSubmatch(section)
	if m == nil {
		return nil, strings.TrimSpace(section)
	}
	cleaned := strings.TrimSpace(strings.Replace(section, m[0], "", 1))

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(m[1]), &parsed); err != nil {
		return nil, cleaned
	}
	// Flatten list/map values to strings for store compatibility.
	meta := make(map[string]string, len(parsed))
	for k, v := range parsed {
		meta[k] = fmt.Sprintf("%v", v)
	}
	return meta, cleaned
}

// chunk splits text into ~chunkSize character pieces, preferring paragraph
// then line then word boundaries, carrying chunkOverlap characters of
// context between consecutive chunks.
func (ix *Indexer) chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= ix.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + ix.chunkSize
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		cut := boundaryBefore(text, start, end)
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))
		next := cut - ix.chunkOverlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// boundaryBefore finds the best split point in (start, limit]: the last
// paragraph break, else the last newline, else the last space, else limit.
func boundaryBefore(text string, start, limit int) int {
	window := text[start:limit]
	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + len(sep)
		}
	}
	return limit
}
