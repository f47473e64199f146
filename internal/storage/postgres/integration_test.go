//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"books_importer/internal/domain"
	"books_importer/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_books.up.sql"),
			filepath.Join(migrationsPath, "002_create_reviews.up.sql"),
			filepath.Join(migrationsPath, "003_create_favorites.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "TRUNCATE TABLE reviews RESTART IDENTITY CASCADE")
	_, _ = s.db.ExecContext(s.ctx, "TRUNCATE TABLE books RESTART IDENTITY CASCADE")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) seedBook(title string) int64 {
	var id int64
	err := s.db.GetContext(s.ctx, &id,
		"INSERT INTO books (title) VALUES ($1) RETURNING id", title)
	s.Require().NoError(err)
	return id
}

func (s *PostgresIntegrationSuite) seedReview(bookID int64, score *float64, reviewTime *int64, priceText *string) {
	_, err := s.db.ExecContext(s.ctx,
		`INSERT INTO reviews (book_id, review_score, review_time, original_price_text)
		 VALUES ($1, $2, $3, $4)`,
		bookID, score, reviewTime, priceText)
	s.Require().NoError(err)
}

func (s *PostgresIntegrationSuite) TestBookStore_InsertIgnore_DuplicateTitle() {
	store := NewBookStore(s.db)

	book := &domain.Book{
		Title:   "The Hobbit",
		Authors: utils.Ptr("['J.R.R. Tolkien']"),
	}
	s.NoError(store.InsertIgnore(s.ctx, book))

	// same title again, different details: must be a silent no-op
	dup := &domain.Book{
		Title:     "The Hobbit",
		Publisher: utils.Ptr("Someone Else"),
	}
	s.NoError(store.InsertIgnore(s.ctx, dup))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM books"))
	s.Equal(1, count)

	var authors string
	s.NoError(s.db.GetContext(s.ctx, &authors, "SELECT authors FROM books WHERE title = 'The Hobbit'"))
	s.Equal("['J.R.R. Tolkien']", authors)
}

func (s *PostgresIntegrationSuite) TestBookStore_InsertIgnore_Defaults() {
	store := NewBookStore(s.db)
	s.NoError(store.InsertIgnore(s.ctx, &domain.Book{Title: "Bare Book"}))

	var row struct {
		Price        *float64 `db:"price"`
		AverageScore float64  `db:"average_score"`
		ReviewsCount int      `db:"reviews_count"`
	}
	s.NoError(s.db.GetContext(s.ctx, &row,
		"SELECT price, average_score, reviews_count FROM books WHERE title = 'Bare Book'"))
	s.Nil(row.Price)
	s.Equal(0.0, row.AverageScore)
	s.Equal(0, row.ReviewsCount)
}

func (s *PostgresIntegrationSuite) TestBookStore_ListTitles() {
	store := NewBookStore(s.db)
	idA := s.seedBook("Book A")
	idB := s.seedBook("Book B")

	titles, err := store.ListTitles(s.ctx)
	s.NoError(err)
	s.Len(titles, 2)

	byTitle := make(map[string]int64, len(titles))
	for _, t := range titles {
		byTitle[t.Title] = t.ID
	}
	s.Equal(idA, byTitle["Book A"])
	s.Equal(idB, byTitle["Book B"])
}

func (s *PostgresIntegrationSuite) TestReviewStore_InsertBatch() {
	store := NewReviewStore(s.db)
	bookID := s.seedBook("Book")

	batch := []domain.Review{
		{
			BookID:           bookID,
			OriginalReviewID: utils.Ptr("R1"),
			UserID:           utils.Ptr("U1"),
			ProfileName:      utils.Ptr("Reader One"),
			Score:            utils.Ptr(5.0),
			Time:             utils.Ptr(int64(1000)),
			Summary:          utils.Ptr("Great"),
			PriceText:        utils.Ptr("$9.99"),
		},
		{
			BookID:           bookID,
			OriginalReviewID: utils.Ptr("R2"),
			Score:            utils.Ptr(3.0),
		},
	}
	s.NoError(store.InsertBatch(s.ctx, batch))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM reviews"))
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestReviewStore_InsertBatch_ConflictSkipped() {
	store := NewReviewStore(s.db)
	bookID := s.seedBook("Book")

	first := []domain.Review{{BookID: bookID, OriginalReviewID: utils.Ptr("R1"), Score: utils.Ptr(4.0)}}
	s.NoError(store.InsertBatch(s.ctx, first))

	// same (book_id, original_review_id) plus one fresh row
	second := []domain.Review{
		{BookID: bookID, OriginalReviewID: utils.Ptr("R1"), Score: utils.Ptr(1.0)},
		{BookID: bookID, OriginalReviewID: utils.Ptr("R2"), Score: utils.Ptr(2.0)},
	}
	s.NoError(store.InsertBatch(s.ctx, second))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM reviews"))
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestReviewStore_InsertBatch_Empty() {
	store := NewReviewStore(s.db)
	s.NoError(store.InsertBatch(s.ctx, nil))
}

func (s *PostgresIntegrationSuite) TestAggregateStore_RecomputeScores() {
	store := NewAggregateStore(s.db)
	bookID := s.seedBook("Reviewed Book")

	// scores 3, 5 and one null: count 2, average 4.0
	s.seedReview(bookID, utils.Ptr(3.0), nil, nil)
	s.seedReview(bookID, utils.Ptr(5.0), nil, nil)
	s.seedReview(bookID, nil, nil, nil)

	updated, err := store.RecomputeScores(s.ctx)
	s.NoError(err)
	s.Equal(int64(1), updated)

	var row struct {
		AverageScore float64 `db:"average_score"`
		ReviewsCount int     `db:"reviews_count"`
	}
	s.NoError(s.db.GetContext(s.ctx, &row,
		"SELECT average_score, reviews_count FROM books WHERE id = $1", bookID))
	s.Equal(2, row.ReviewsCount)
	s.InDelta(4.0, row.AverageScore, 0.001)
}

func (s *PostgresIntegrationSuite) TestAggregateStore_ZeroUnreviewed() {
	store := NewAggregateStore(s.db)
	reviewed := s.seedBook("Reviewed")
	unreviewed := s.seedBook("Unreviewed")
	s.seedReview(reviewed, utils.Ptr(4.0), nil, nil)

	// simulate stale aggregates from a previous run
	_, err := s.db.ExecContext(s.ctx,
		"UPDATE books SET reviews_count = 9, average_score = 9.9 WHERE id = $1", unreviewed)
	s.Require().NoError(err)

	zeroed, err := store.ZeroUnreviewed(s.ctx)
	s.NoError(err)
	s.Equal(int64(1), zeroed)

	var row struct {
		AverageScore float64 `db:"average_score"`
		ReviewsCount int     `db:"reviews_count"`
	}
	s.NoError(s.db.GetContext(s.ctx, &row,
		"SELECT average_score, reviews_count FROM books WHERE id = $1", unreviewed))
	s.Equal(0, row.ReviewsCount)
	s.Equal(0.0, row.AverageScore)
}

// inferPrices runs InferPrices inside a transaction; the savepoint it sets
// requires an open transaction block.
func (s *PostgresIntegrationSuite) inferPrices() int64 {
	tm := NewTransactionManager(s.db)
	store := NewAggregateStore(s.db)

	var updated int64
	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		var err error
		updated, err = store.InferPrices(txCtx)
		return err
	})
	s.Require().NoError(err)
	return updated
}

func (s *PostgresIntegrationSuite) TestAggregateStore_InferPrices_EarliestValidWins() {
	bookID := s.seedBook("Priced Book")

	// later review has a higher price, earlier one must win
	s.seedReview(bookID, nil, utils.Ptr(int64(200)), utils.Ptr("$12.00"))
	s.seedReview(bookID, nil, utils.Ptr(int64(100)), utils.Ptr("$8.00"))
	// garbage price text is never a candidate
	s.seedReview(bookID, nil, utils.Ptr(int64(50)), utils.Ptr("free!"))

	s.Equal(int64(1), s.inferPrices())

	var price float64
	s.NoError(s.db.GetContext(s.ctx, &price, "SELECT price FROM books WHERE id = $1", bookID))
	s.InDelta(8.00, price, 0.001)
}

func (s *PostgresIntegrationSuite) TestAggregateStore_InferPrices_KeepsExistingPrice() {
	bookID := s.seedBook("Already Priced")

	_, err := s.db.ExecContext(s.ctx, "UPDATE books SET price = 9.99 WHERE id = $1", bookID)
	s.Require().NoError(err)
	s.seedReview(bookID, nil, utils.Ptr(int64(100)), utils.Ptr("$1.00"))

	s.Equal(int64(0), s.inferPrices())

	var price float64
	s.NoError(s.db.GetContext(s.ctx, &price, "SELECT price FROM books WHERE id = $1", bookID))
	s.InDelta(9.99, price, 0.001)
}

func (s *PostgresIntegrationSuite) TestAggregateStore_InferPrices_NullTimeSortsLast() {
	bookID := s.seedBook("Book")

	s.seedReview(bookID, nil, nil, utils.Ptr("$5.00"))
	s.seedReview(bookID, nil, utils.Ptr(int64(500)), utils.Ptr("$7.00"))

	s.inferPrices()

	var price float64
	s.NoError(s.db.GetContext(s.ctx, &price, "SELECT price FROM books WHERE id = $1", bookID))
	s.InDelta(7.00, price, 0.001)
}

func (s *PostgresIntegrationSuite) TestAggregateStore_InferPrices_OutsideTransaction() {
	bookID := s.seedBook("Book")
	s.seedReview(bookID, nil, utils.Ptr(int64(100)), utils.Ptr("$2.00"))

	store := NewAggregateStore(s.db)
	_, err := store.InferPrices(s.ctx)
	s.ErrorContains(err, "set savepoint")
}

func (s *PostgresIntegrationSuite) TestAggregateStore_InsideTransaction() {
	tm := NewTransactionManager(s.db)
	store := NewAggregateStore(s.db)
	bookID := s.seedBook("Book")
	s.seedReview(bookID, utils.Ptr(4.0), utils.Ptr(int64(100)), utils.Ptr("$3.50"))

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if _, err := store.RecomputeScores(txCtx); err != nil {
			return err
		}
		if _, err := store.ZeroUnreviewed(txCtx); err != nil {
			return err
		}
		_, err := store.InferPrices(txCtx)
		return err
	})
	s.NoError(err)

	var row struct {
		Price        float64 `db:"price"`
		ReviewsCount int     `db:"reviews_count"`
	}
	s.NoError(s.db.GetContext(s.ctx, &row,
		"SELECT price, reviews_count FROM books WHERE id = $1", bookID))
	s.InDelta(3.50, row.Price, 0.001)
	s.Equal(1, row.ReviewsCount)
}

func (s *PostgresIntegrationSuite) TestTableCleaner_TruncateRestartsIdentity() {
	cleaner := NewTableCleaner(s.db)
	bookID := s.seedBook("Doomed")
	s.seedReview(bookID, utils.Ptr(5.0), nil, nil)

	s.NoError(cleaner.Truncate(s.ctx))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM books"))
	s.Equal(0, count)
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM reviews"))
	s.Equal(0, count)

	s.Equal(int64(1), s.seedBook("Fresh Start"))
}

func (s *PostgresIntegrationSuite) TestTableCleaner_DeleteAll() {
	cleaner := NewTableCleaner(s.db)
	bookID := s.seedBook("Doomed")
	s.seedReview(bookID, utils.Ptr(5.0), nil, nil)

	s.NoError(cleaner.DeleteAll(s.ctx))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM books"))
	s.Equal(0, count)
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM reviews"))
	s.Equal(0, count)
}

type bookRow struct {
	Title        string   `db:"title"`
	Price        *float64 `db:"price"`
	AverageScore float64  `db:"average_score"`
	ReviewsCount int      `db:"reviews_count"`
}

type reviewRow struct {
	BookID           int64    `db:"book_id"`
	OriginalReviewID *string  `db:"original_review_id"`
	Score            *float64 `db:"review_score"`
	Time             *int64   `db:"review_time"`
	PriceText        *string  `db:"original_price_text"`
}

type reloadSnapshot struct {
	Books   []bookRow
	Reviews []reviewRow
}

// fullReload drives the stores through one complete clear-and-reload with a
// fixed input set, then snapshots the resulting table contents.
func (s *PostgresIntegrationSuite) fullReload() reloadSnapshot {
	cleaner := NewTableCleaner(s.db)
	tm := NewTransactionManager(s.db)
	books := NewBookStore(s.db)
	reviews := NewReviewStore(s.db)
	aggregates := NewAggregateStore(s.db)

	s.Require().NoError(cleaner.Truncate(s.ctx))

	var titles []domain.BookTitle
	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		for _, title := range []string{"Book A", "Book B"} {
			if err := books.InsertIgnore(txCtx, &domain.Book{Title: title}); err != nil {
				return err
			}
		}
		var err error
		titles, err = books.ListTitles(txCtx)
		return err
	})
	s.Require().NoError(err)
	s.Require().Len(titles, 2)

	byTitle := make(map[string]int64, len(titles))
	for _, t := range titles {
		byTitle[t.Title] = t.ID
	}

	err = tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		return reviews.InsertBatch(txCtx, []domain.Review{
			{
				BookID:           byTitle["Book A"],
				OriginalReviewID: utils.Ptr("R1"),
				Score:            utils.Ptr(3.0),
				Time:             utils.Ptr(int64(100)),
				PriceText:        utils.Ptr("$8.00"),
			},
			{
				BookID:           byTitle["Book A"],
				OriginalReviewID: utils.Ptr("R2"),
				Score:            utils.Ptr(5.0),
				Time:             utils.Ptr(int64(200)),
				PriceText:        utils.Ptr("$12.00"),
			},
			{
				BookID:           byTitle["Book B"],
				OriginalReviewID: utils.Ptr("R3"),
			},
		})
	})
	s.Require().NoError(err)

	err = tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if _, err := aggregates.RecomputeScores(txCtx); err != nil {
			return err
		}
		if _, err := aggregates.ZeroUnreviewed(txCtx); err != nil {
			return err
		}
		_, err := aggregates.InferPrices(txCtx)
		return err
	})
	s.Require().NoError(err)

	var snap reloadSnapshot
	s.Require().NoError(s.db.SelectContext(s.ctx, &snap.Books,
		`SELECT title, price, average_score, reviews_count FROM books ORDER BY title`))
	s.Require().NoError(s.db.SelectContext(s.ctx, &snap.Reviews,
		`SELECT book_id, original_review_id, review_score, review_time, original_price_text
		 FROM reviews ORDER BY book_id, original_review_id`))
	return snap
}

func (s *PostgresIntegrationSuite) TestFullReload_RerunIsIdempotent() {
	first := s.fullReload()
	second := s.fullReload()

	s.Equal(first, second)

	// the first run's state is itself what one load of this input produces
	s.Len(first.Books, 2)
	s.Len(first.Reviews, 3)
	s.Equal(2, first.Books[0].ReviewsCount)
	s.InDelta(4.0, first.Books[0].AverageScore, 0.001)
	s.NotNil(first.Books[0].Price)
	s.InDelta(8.00, *first.Books[0].Price, 0.001)
	s.Equal(0, first.Books[1].ReviewsCount)
	s.Nil(first.Books[1].Price)
}

func (s *PostgresIntegrationSuite) TestTransactionManager_RollbackOnError() {
	tm := NewTransactionManager(s.db)
	store := NewBookStore(s.db)

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if err := store.InsertIgnore(txCtx, &domain.Book{Title: "Phantom"}); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM books"))
	s.Equal(0, count)
}
