// Package rag implements the retrieval-decision and context-assembly core of
// the Enerzal pipeline: routing classification, coarse-to-fine two-stage
// retrieval, relevance re-ranking, and context injection.
//
// All components are constructed once at startup around process-wide,
// read-only stores and models, and are safe for concurrent use across
// simultaneous pipeline invocations.
package rag
