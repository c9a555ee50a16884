// Package retrieval provides the document store behind the Database_Search
// tool of the rag-assistant agent. Embeddings and vector indexes are out of
// scope; InMemoryStore ranks chunks by keyword overlap, which is enough to
// ground answers in a small local corpus.
package retrieval
