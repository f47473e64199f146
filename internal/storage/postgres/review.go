package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"books_importer/internal/domain"
)

// reviewColumns is the number of columns written per review row.
const reviewColumns = 10

type ReviewStore struct {
	db *sqlx.DB
}

func NewReviewStore(db *sqlx.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

// InsertBatch writes one multi-row insert for the whole batch, with
// positional parameters for every row and column. Rows hitting a uniqueness
// conflict (duplicate original review id for the same book) are skipped.
// An empty batch is a no-op.
func (s *ReviewStore) InsertBatch(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO reviews (
		book_id, original_review_id, user_id, profileName, review_helpfulness,
		review_score, review_time, review_summary, review_text, original_price_text
	) VALUES `)

	args := make([]interface{}, 0, len(reviews)*reviewColumns)
	for i, r := range reviews {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < reviewColumns; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*reviewColumns + j + 1))
		}
		sb.WriteString(")")
		args = append(args,
			r.BookID,
			r.OriginalReviewID,
			r.UserID,
			r.ProfileName,
			r.Helpfulness,
			r.Score,
			r.Time,
			r.Summary,
			r.Text,
			r.PriceText,
		)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), args...)
	return err
}
