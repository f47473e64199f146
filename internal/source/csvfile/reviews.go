package csvfile

import (
	"log/slog"

	"books_importer/internal/domain"
)

// Column names in the reviews export are a fixed contract.
const (
	reviewColID          = "Id"
	reviewColTitle       = "Title"
	reviewColPrice       = "Price"
	reviewColUserID      = "User_id"
	reviewColProfileName = "profileName"
	reviewColHelpfulness = "review/helpfulness"
	reviewColScore       = "review/score"
	reviewColTime        = "review/time"
	reviewColSummary     = "review/summary"
	reviewColText        = "review/text"
)

// ReviewSource streams review records from a CSV export in file order.
type ReviewSource struct {
	r *reader
}

// OpenReviews opens the reviews CSV and validates its header. The returned
// source must be closed by the caller and cannot be rewound.
func OpenReviews(path string, logger *slog.Logger) (*ReviewSource, error) {
	r, err := open(path, logger.With("file", "reviews"), reviewColTitle)
	if err != nil {
		return nil, err
	}
	return &ReviewSource{r: r}, nil
}

// Next returns the next review record, or io.EOF at end of stream.
func (s *ReviewSource) Next() (*domain.ReviewRecord, error) {
	fields, err := s.r.next()
	if err != nil {
		return nil, err
	}
	return &domain.ReviewRecord{
		ID:          s.r.field(fields, reviewColID),
		Title:       s.r.field(fields, reviewColTitle),
		Price:       s.r.field(fields, reviewColPrice),
		UserID:      s.r.field(fields, reviewColUserID),
		ProfileName: s.r.field(fields, reviewColProfileName),
		Helpfulness: s.r.field(fields, reviewColHelpfulness),
		Score:       s.r.field(fields, reviewColScore),
		Time:        s.r.field(fields, reviewColTime),
		Summary:     s.r.field(fields, reviewColSummary),
		Text:        s.r.field(fields, reviewColText),
	}, nil
}

func (s *ReviewSource) Close() error {
	return s.r.close()
}
