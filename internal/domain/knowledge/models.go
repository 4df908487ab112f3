// Package knowledge implements the retrieval side of the chat pipeline:
// tenant-partitioned chunk storage, vector and keyword search, topic
// classification, and prompt-context formatting.
package knowledge

import (
	"strings"
	"time"
)

// KnowledgeChunk is a unit of knowledge-base text eligible for retrieval.
// Chunks belong to exactly one tenant; every store query filters on tenant_id.
//
//nolint:revive // primary domain term of the knowledge layer
type KnowledgeChunk struct {
	ID          string
	TenantID    string
	Products    []string // product tags; empty slice means "all products"
	Language    string   // BCP-47-ish tag, "" when unscoped
	Content     string
	ContentKey  string    // upsert identity: hash of products/language/content
	Embedding   []float32 // nil until embedded
	SourceTitle string
	SourceURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsEmbedded returns true once a vector has been computed for the chunk.
func (k *KnowledgeChunk) IsEmbedded() bool {
	return len(k.Embedding) > 0
}

// SearchResult is a single ranked retrieval result. Ephemeral: computed per
// query, never persisted.
type SearchResult struct {
	ID          string
	Content     string
	Similarity  float64 // normalized relevance in [0, 1]
	SourceTitle string
	SourceURL   string
}

// UpsertChunkInput carries the fields required to create or replace a chunk.
type UpsertChunkInput struct {
	TenantID    string
	Products    []string
	Language    string
	Content     string
	SourceTitle string
	SourceURL   string
}

// SimilarityFilter scopes a vector search. TenantID is mandatory; the store
// rejects a filter without it rather than fall through to a global scan.
type SimilarityFilter struct {
	TenantID      string
	Products      []string // match chunks tagged with any of these, or untagged
	Languages     []string
	MinSimilarity float64
	Limit         int
}

// KeywordFilter scopes a lexical search.
type KeywordFilter struct {
	TenantID  string
	Products  []string
	Languages []string
	Limit     int
}

// topicRule maps content keywords to a human-readable source title. Rules are
// evaluated top to bottom; the first rule whose keywords match wins, so order
// is the precedence.
type topicRule struct {
	keywords []string
	title    string
	url      string
}

// topicRules is the fixed, ordered classifier used to derive source
// attribution for retrieved chunks. Deterministic and keyword-driven.
var topicRules = []topicRule{
	{keywords: []string{"pricing", "setup fee", "per month", "/mo", "subscription cost"}, title: "Pricing", url: "/pricing"},
	{keywords: []string{"hipaa", "security", "encryption", "gdpr", "compliance"}, title: "FAQ - Security", url: "/faq#security"},
	{keywords: []string{"refund", "cancel", "billing", "invoice"}, title: "FAQ - Billing", url: "/faq#billing"},
	{keywords: []string{"integration", "api key", "webhook", "zapier"}, title: "Integrations", url: "/integrations"},
	{keywords: []string{"install", "embed", "onboard", "getting started"}, title: "Getting Started", url: "/docs/getting-started"},
	{keywords: []string{"language", "spanish", "english", "translation"}, title: "FAQ - Languages", url: "/faq#languages"},
}

// fallbackTitle is used when no topic rule matches.
const fallbackTitle = "Knowledge Base"

// classifyTopic derives a (title, url) pair for a chunk by matching its
// content against topicRules. Matching is case-insensitive substring search.
func classifyTopic(content string) (title, url string) {
	lower := strings.ToLower(content)
	for _, rule := range topicRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.title, rule.url
			}
		}
	}
	return fallbackTitle, ""
}
