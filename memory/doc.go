// Package memory implements the retrieval contract consumed by the
// orchestration core: query text in, ranked scored snippets out, with
// deterministic ordering. Two stores are provided: a chromem-go backed
// vector store for semantic retrieval over an indexed document corpus, and a
// keyword store for tests and dependency-free setups. The Indexer feeds
// either store from a directory of Markdown documents.
package memory
