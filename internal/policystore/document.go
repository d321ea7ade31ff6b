// Package policystore finds security policy passages relevant to a search term.
//
// PostgresStore ranks documents by pgvector cosine similarity of embeddings;
// MemoryStore ranks by token overlap and needs no infrastructure.
package policystore

// Document is one policy passage.
type Document struct {
	PolicyID string `yaml:"policy_id"`
	Category string `yaml:"category"`
	Content  string `yaml:"content"`
}

// Match is a document with its similarity to the query in 0..1.
type Match struct {
	Document
	Score float64
}
