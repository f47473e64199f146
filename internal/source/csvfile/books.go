package csvfile

import (
	"log/slog"

	"books_importer/internal/domain"
)

// Column names in the books export are a fixed contract.
const (
	bookColTitle         = "Title"
	bookColAuthors       = "authors"
	bookColDescription   = "description"
	bookColImage         = "image"
	bookColPreviewLink   = "previewLink"
	bookColPublisher     = "publisher"
	bookColPublishedDate = "publishedDate"
	bookColInfoLink      = "infoLink"
	bookColCategories    = "categories"
	bookColRatingsCount  = "ratingsCount"
)

// BookSource streams book records from a CSV export in file order.
type BookSource struct {
	r *reader
}

// OpenBooks opens the books CSV and validates its header. The returned source
// must be closed by the caller and cannot be rewound.
func OpenBooks(path string, logger *slog.Logger) (*BookSource, error) {
	r, err := open(path, logger.With("file", "books"), bookColTitle)
	if err != nil {
		return nil, err
	}
	return &BookSource{r: r}, nil
}

// Next returns the next book record, or io.EOF at end of stream.
func (s *BookSource) Next() (*domain.BookRecord, error) {
	fields, err := s.r.next()
	if err != nil {
		return nil, err
	}
	return &domain.BookRecord{
		Title:         s.r.field(fields, bookColTitle),
		Authors:       s.r.field(fields, bookColAuthors),
		Description:   s.r.field(fields, bookColDescription),
		Image:         s.r.field(fields, bookColImage),
		PreviewLink:   s.r.field(fields, bookColPreviewLink),
		Publisher:     s.r.field(fields, bookColPublisher),
		PublishedDate: s.r.field(fields, bookColPublishedDate),
		InfoLink:      s.r.field(fields, bookColInfoLink),
		Categories:    s.r.field(fields, bookColCategories),
		RatingsCount:  s.r.field(fields, bookColRatingsCount),
	}, nil
}

func (s *BookSource) Close() error {
	return s.r.close()
}
