package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"books_importer/internal/domain"
)

type BookStore interface {
	InsertIgnore(ctx context.Context, book *domain.Book) error
	ListTitles(ctx context.Context) ([]domain.BookTitle, error)
}

type ReviewStore interface {
	InsertBatch(ctx context.Context, reviews []domain.Review) error
}

type AggregateStore interface {
	RecomputeScores(ctx context.Context) (int64, error)
	ZeroUnreviewed(ctx context.Context) (int64, error)
	InferPrices(ctx context.Context) (int64, error)
}

type TableCleaner interface {
	Truncate(ctx context.Context) error
	DeleteAll(ctx context.Context) error
}

// BookSource is a single-pass ordered stream of raw book records. Next
// returns io.EOF when the stream is exhausted.
type BookSource interface {
	Next() (*domain.BookRecord, error)
	Close() error
}

// ReviewSource is a single-pass ordered stream of raw review records.
type ReviewSource interface {
	Next() (*domain.ReviewRecord, error)
	Close() error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, stats *domain.ImportStats) error
	Close() error
}
