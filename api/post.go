package api

import "time"

// Post is the JSON form of a published post
type Post struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`
}

// PostList is one page of published posts
type PostList struct {
	Posts  []Post `json:"posts"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Error is returned with every non-2xx JSON response
type Error struct {
	Error string `json:"error"`
}
