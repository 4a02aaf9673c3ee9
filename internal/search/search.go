// Package search finds documents by filename, preferring Meilisearch with a
// PostgreSQL fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"originalFilename"`
	Snippet          string `json:"snippet"`
	OriginalType     string `json:"originalType"`
	ShareHash        string `json:"shareHash"`
}

// Query describes a search request.
type Query struct {
	Text   string
	UserID string // empty = all users
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a filename search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"originalFilename"`
	OriginalType     string `json:"originalType"`
	ShareHash        string `json:"shareHash"`
	UserID           string `json:"userId"`
}
