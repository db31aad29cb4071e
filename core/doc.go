// Package core provides the foundational domain types and interfaces used by
// devsquad. It defines the core abstractions for:
//
//   - Messages (immutable, kind-tagged communication records)
//   - Transcripts (append-only conversation state with snapshot reads)
//   - Roles and agent descriptors (handoff rules, memory capability)
//   - Execution requests/results and the sandbox Executor contract
//   - Memory retrieval (query in, ranked scored snippets out)
//
// The package intentionally keeps implementation concerns (bus delivery,
// routing, the turn loop, concrete executors) out of scope, exposing small
// interfaces so each can be swapped independently.
package core
