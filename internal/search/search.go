package search

// Result is a single title-search hit. Hits are access-filtered by
// the caller before leaving the service layer.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	OwnerID string `json:"-"`
}

// Query describes a title search request. UserID restricts the
// Postgres path to accessible documents; the Meilisearch path returns
// a superset that the caller filters.
type Query struct {
	Text   string
	UserID string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a document title search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	OwnerID string `json:"ownerId"`
}
