package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"books_importer/internal/config"
	"books_importer/internal/domain"
)

const (
	bookProgressEvery   = 20000
	reviewProgressEvery = 500000
)

// Sources hands out fresh single-pass record streams. A new stream is opened
// for every run since the underlying files cannot be rewound.
type Sources struct {
	OpenBooks   func() (BookSource, error)
	OpenReviews func() (ReviewSource, error)
}

// ImportService runs the full reload: clear tables, load books, load reviews
// linked through the title index, recompute aggregates, report.
type ImportService struct {
	sources    Sources
	books      BookStore
	reviews    ReviewStore
	aggregates AggregateStore
	cleaner    TableCleaner
	txManager  TransactionManager
	publisher  Publisher
	logger     *slog.Logger
	config     config.ImportConfig
}

func NewImportService(
	sources Sources,
	books BookStore,
	reviews ReviewStore,
	aggregates AggregateStore,
	cleaner TableCleaner,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.ImportConfig,
) *ImportService {
	return &ImportService{
		sources:    sources,
		books:      books,
		reviews:    reviews,
		aggregates: aggregates,
		cleaner:    cleaner,
		txManager:  txManager,
		publisher:  publisher,
		logger:     logger,
		config:     cfg,
	}
}

// Run executes one full import and reports elapsed time and counters. Any
// phase failure aborts the remaining phases.
func (s *ImportService) Run(ctx context.Context) (*domain.ImportStats, error) {
	start := time.Now()
	s.logger.Info("starting full import",
		"books_csv", s.config.BooksCSV,
		"reviews_csv", s.config.ReviewsCSV,
		"batch_size", s.config.BatchSize,
	)

	stats, err := s.run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Error("import failed", "error", err, "duration", elapsed)
		return nil, err
	}
	stats.Duration = elapsed

	s.logger.Info("import completed",
		"books_read", stats.BooksRead,
		"books_indexed", stats.BooksIndexed,
		"reviews_linked", stats.ReviewsLinked,
		"reviews_unlinked", stats.ReviewsUnlinked,
		"duration", elapsed,
	)
	return stats, nil
}

func (s *ImportService) run(ctx context.Context) (*domain.ImportStats, error) {
	if err := s.clearTables(ctx); err != nil {
		return nil, fmt.Errorf("clear tables: %w", err)
	}

	booksRead, index, err := s.importBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("import books: %w", err)
	}

	linked, unlinked, err := s.importReviews(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("import reviews: %w", err)
	}

	if linked > 0 {
		if err := s.updateAggregates(ctx); err != nil {
			return nil, fmt.Errorf("update aggregates: %w", err)
		}
	} else {
		s.logger.Info("no reviews linked, skipping aggregate update")
	}

	stats := &domain.ImportStats{
		BooksRead:       booksRead,
		BooksIndexed:    len(index),
		ReviewsLinked:   linked,
		ReviewsUnlinked: unlinked,
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, stats); err != nil {
			// the report is informational; a publish failure must not undo the import
			s.logger.Error("failed to publish import report", "error", err)
		}
	}

	return stats, nil
}

func (s *ImportService) clearTables(ctx context.Context) error {
	if err := s.cleaner.Truncate(ctx); err != nil {
		s.logger.Warn("truncate failed, falling back to delete", "error", err)
		if err := s.cleaner.DeleteAll(ctx); err != nil {
			return err
		}
		s.logger.Info("tables cleared with delete")
		return nil
	}
	s.logger.Info("tables cleared with truncate")
	return nil
}

// importBooks streams the books source inside one transaction, deduplicating
// on exact raw title, and returns the rows read plus the title index built
// from everything persisted.
func (s *ImportService) importBooks(ctx context.Context) (int, domain.TitleIndex, error) {
	src, err := s.sources.OpenBooks()
	if err != nil {
		return 0, nil, fmt.Errorf("open books source: %w", err)
	}
	defer src.Close()

	read := 0
	index := make(domain.TitleIndex)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		seen := make(map[string]struct{})
		for {
			rec, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read books source: %w", err)
			}
			read++

			if rec.Title == "" {
				if read > 1 {
					s.logger.Warn("book without title, skipping", "row", read)
				}
				continue
			}
			if _, dup := seen[rec.Title]; dup {
				continue
			}

			if err := s.books.InsertIgnore(txCtx, bookFromRecord(rec)); err != nil {
				// a lost book row only costs review linkage, keep going
				s.logger.Warn("failed to insert book", "title", rec.Title, "row", read, "error", err)
				continue
			}
			seen[rec.Title] = struct{}{}

			if read%bookProgressEvery == 0 {
				s.logger.Info("books progress", "rows_read", read)
			}
		}

		titles, err := s.books.ListTitles(txCtx)
		if err != nil {
			return fmt.Errorf("list book titles: %w", err)
		}
		for _, t := range titles {
			index.Put(t.Title, t.ID)
		}
		return nil
	})
	if err != nil {
		return read, nil, err
	}

	s.logger.Info("book pass completed", "rows_read", read, "index_size", len(index))
	return read, index, nil
}

// importReviews streams the reviews source inside one transaction, resolving
// each record through the title index and flushing resolved rows in batches.
// Records whose title resolves to no book are dropped and counted.
func (s *ImportService) importReviews(ctx context.Context, index domain.TitleIndex) (linked, unlinked int, err error) {
	if len(index) == 0 {
		s.logger.Warn("title index is empty, skipping review import")
		return 0, 0, nil
	}

	src, err := s.sources.OpenReviews()
	if err != nil {
		return 0, 0, fmt.Errorf("open reviews source: %w", err)
	}
	defer src.Close()

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		batch := make([]domain.Review, 0, s.config.BatchSize)
		read := 0
		for {
			rec, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read reviews source: %w", err)
			}
			read++

			bookID, ok := index.Lookup(rec.Title)
			if !ok {
				unlinked++
				continue
			}
			linked++
			batch = append(batch, reviewFromRecord(bookID, rec))

			if len(batch) >= s.config.BatchSize {
				if err := s.reviews.InsertBatch(txCtx, batch); err != nil {
					return fmt.Errorf("insert review batch: %w", err)
				}
				batch = make([]domain.Review, 0, s.config.BatchSize)
			}

			if read%reviewProgressEvery == 0 {
				s.logger.Debug("reviews progress", "rows_read", read, "linked", linked, "unlinked", unlinked)
			}
		}

		if len(batch) > 0 {
			s.logger.Debug("flushing final review batch", "size", len(batch))
			if err := s.reviews.InsertBatch(txCtx, batch); err != nil {
				return fmt.Errorf("insert final review batch: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return linked, unlinked, err
	}

	s.logger.Info("review pass completed", "linked", linked, "unlinked", unlinked)
	return linked, unlinked, nil
}

// updateAggregates recomputes counts, averages and inferred prices in one
// transaction. Price inference is best-effort enrichment: its failure is
// logged and swallowed so the recomputed counts still commit.
func (s *ImportService) updateAggregates(ctx context.Context) error {
	s.logger.Info("updating book aggregates")

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, err := s.aggregates.RecomputeScores(txCtx)
		if err != nil {
			return fmt.Errorf("recompute scores: %w", err)
		}
		zeroed, err := s.aggregates.ZeroUnreviewed(txCtx)
		if err != nil {
			return fmt.Errorf("zero unreviewed: %w", err)
		}
		s.logger.Info("score aggregates updated", "updated", updated, "zeroed", zeroed)

		priced, err := s.aggregates.InferPrices(txCtx)
		if err != nil {
			s.logger.Error("price inference failed", "error", err)
			return nil
		}
		s.logger.Info("prices inferred", "updated", priced)
		return nil
	})
}

func bookFromRecord(rec *domain.BookRecord) *domain.Book {
	return &domain.Book{
		Title:         rec.Title,
		Authors:       optString(rec.Authors),
		Description:   optString(rec.Description),
		Image:         optString(rec.Image),
		PreviewLink:   optString(rec.PreviewLink),
		Publisher:     optString(rec.Publisher),
		PublishedDate: optString(rec.PublishedDate),
		InfoLink:      optString(rec.InfoLink),
		Categories:    optString(rec.Categories),
	}
}

func reviewFromRecord(bookID int64, rec *domain.ReviewRecord) domain.Review {
	r := domain.Review{
		BookID:           bookID,
		OriginalReviewID: optString(rec.ID),
		UserID:           optString(rec.UserID),
		ProfileName:      optString(rec.ProfileName),
		Helpfulness:      optString(rec.Helpfulness),
		Summary:          optString(rec.Summary),
		Text:             optString(rec.Text),
		PriceText:        optString(rec.Price),
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(rec.Score), 64); err == nil {
		r.Score = &v
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(rec.Time), 10, 64); err == nil {
		r.Time = &v
	}
	return r
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
