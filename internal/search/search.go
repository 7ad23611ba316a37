package search

// Result is one post hit returned to the admin UI.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Status  string `json:"status"`
	Snippet string `json:"snippet"`
}

// Query carries the search parameters from the HTTP layer.
type Query struct {
	Text   string
	Status string
	Limit  int
	Offset int
}

// Response is the payload shape for search endpoints.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// PostRecord is the indexed representation of a post.
type PostRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Status  string `json:"status"`
	Content string `json:"content"`
}
