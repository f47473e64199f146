package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"books_importer/internal/domain"
)

type BookStore struct {
	db *sqlx.DB
}

func NewBookStore(db *sqlx.DB) *BookStore {
	return &BookStore{db: db}
}

// InsertIgnore persists a new book with default aggregate values. A conflict
// on the title uniqueness constraint is silently ignored, which makes the
// insert safe against prior partial state.
func (s *BookStore) InsertIgnore(ctx context.Context, book *domain.Book) error {
	query := `
		INSERT INTO books (
			title, description, authors, image, previewLink, publisher,
			publishedDate, infoLink, categories, price, average_score, reviews_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, 0.0, 0
		)
		ON CONFLICT (title) DO NOTHING`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		book.Title,
		book.Description,
		book.Authors,
		book.Image,
		book.PreviewLink,
		book.Publisher,
		book.PublishedDate,
		book.InfoLink,
		book.Categories,
	)
	return err
}

// ListTitles returns id and title of every persisted book, for building the
// title index after the book pass.
func (s *BookStore) ListTitles(ctx context.Context) ([]domain.BookTitle, error) {
	query := `SELECT id, title FROM books WHERE title IS NOT NULL`

	rows, err := GetExecutor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []domain.BookTitle
	for rows.Next() {
		var t domain.BookTitle
		if err := rows.Scan(&t.ID, &t.Title); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}
