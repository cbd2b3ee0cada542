package interfaces

// PaginationResult wraps a page of items with an optional next page number.
type PaginationResult struct {
	Items    interface{} `json:"items"`
	NextPage *int        `json:"next_page,omitempty"`
}
