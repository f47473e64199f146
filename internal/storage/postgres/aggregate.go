package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// pricePattern accepts a plain non-negative decimal ("10", ".50", "10.50")
// after everything but digits and dots has been stripped from the raw price
// text. It is passed to the query as a parameter so the predicate can change
// without touching the statement.
const pricePattern = `^[0-9]*\.?[0-9]+$`

// AggregateStore recomputes the derived book columns (reviews_count,
// average_score, price) wholesale from the persisted review rows.
type AggregateStore struct {
	db *sqlx.DB
}

func NewAggregateStore(db *sqlx.DB) *AggregateStore {
	return &AggregateStore{db: db}
}

// RecomputeScores sets reviews_count and average_score for every book that
// has at least one review with a non-null score. Books without such reviews
// are not touched. Returns the number of books updated.
func (s *AggregateStore) RecomputeScores(ctx context.Context) (int64, error) {
	query := `
		WITH aggregates AS (
			SELECT
				r.book_id,
				COUNT(r.id) AS review_count,
				AVG(r.review_score) AS avg_score
			FROM reviews r
			WHERE r.book_id IS NOT NULL AND r.review_score IS NOT NULL
			GROUP BY r.book_id
		)
		UPDATE books b
		SET
			reviews_count = COALESCE(a.review_count, 0),
			average_score = COALESCE(a.avg_score, 0.0)
		FROM aggregates a
		WHERE b.id = a.book_id`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ZeroUnreviewed resets the aggregates of every book that has no review rows
// at all, covering books that gained no reviews this run.
func (s *AggregateStore) ZeroUnreviewed(ctx context.Context) (int64, error) {
	query := `
		UPDATE books
		SET reviews_count = 0, average_score = 0.0
		WHERE id NOT IN (SELECT DISTINCT book_id FROM reviews WHERE book_id IS NOT NULL)`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InferPrices takes, per book, the earliest linked review (review_time ASC
// NULLS LAST, then id ASC) whose cleaned price text is a valid non-negative
// decimal, and writes it as the book's price — but never over an existing
// positive price. The statement runs under a savepoint so a failure cannot
// poison the enclosing aggregate transaction.
func (s *AggregateStore) InferPrices(ctx context.Context) (int64, error) {
	exec := GetExecutor(ctx, s.db)

	query := `
		WITH first_valid_price AS (
			SELECT
				r.book_id,
				CAST(NULLIF(regexp_replace(r.original_price_text, '[^0-9.]+', '', 'g'), '') AS NUMERIC(10,2)) AS price_value,
				ROW_NUMBER() OVER (
					PARTITION BY r.book_id
					ORDER BY r.review_time ASC NULLS LAST, r.id ASC
				) AS rn
			FROM reviews r
			WHERE r.original_price_text IS NOT NULL
			  AND NULLIF(regexp_replace(r.original_price_text, '[^0-9.]+', '', 'g'), '') IS NOT NULL
			  AND regexp_replace(r.original_price_text, '[^0-9.]+', '', 'g') ~ $1
			  AND CAST(NULLIF(regexp_replace(r.original_price_text, '[^0-9.]+', '', 'g'), '') AS NUMERIC) >= 0
		)
		UPDATE books b
		SET price = fvp.price_value
		FROM first_valid_price fvp
		WHERE b.id = fvp.book_id
		  AND fvp.rn = 1
		  AND (b.price IS NULL OR b.price <= 0.00)`

	if _, err := exec.ExecContext(ctx, "SAVEPOINT infer_prices"); err != nil {
		return 0, fmt.Errorf("set savepoint: %w", err)
	}

	res, err := exec.ExecContext(ctx, query, pricePattern)
	if err != nil {
		if _, rbErr := exec.ExecContext(ctx, "ROLLBACK TO SAVEPOINT infer_prices"); rbErr != nil {
			return 0, fmt.Errorf("rollback to savepoint after %v: %w", err, rbErr)
		}
		return 0, err
	}

	if _, err := exec.ExecContext(ctx, "RELEASE SAVEPOINT infer_prices"); err != nil {
		return 0, fmt.Errorf("release savepoint: %w", err)
	}
	return res.RowsAffected()
}
