package domain

import "time"

// ImportStats holds statistics about one full import run.
type ImportStats struct {
	BooksRead       int           `json:"books_read"`
	BooksIndexed    int           `json:"books_indexed"`
	ReviewsLinked   int           `json:"reviews_linked"`
	ReviewsUnlinked int           `json:"reviews_unlinked"`
	Duration        time.Duration `json:"duration"`
}
