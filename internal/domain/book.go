package domain

// Book is a persisted catalog entry. Title is the natural key: it is unique
// and a book without a title is never persisted. The aggregate fields
// (Price, AverageScore, ReviewsCount) are written with defaults on insert and
// mutated only by the aggregate recomputation pass.
type Book struct {
	ID            int64
	Title         string
	Description   *string
	Authors       *string
	Image         *string
	PreviewLink   *string
	Publisher     *string
	PublishedDate *string
	InfoLink      *string
	Categories    *string
	Price         *float64
	AverageScore  float64
	ReviewsCount  int
}

// BookTitle is the id/title projection used to build the title index.
type BookTitle struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}

// Review is a persisted review row. BookID always references an existing
// book; records that fail to resolve a book are dropped before this type is
// ever constructed. Rows are written once and never mutated.
type Review struct {
	ID               int64
	BookID           int64
	OriginalReviewID *string
	UserID           *string
	ProfileName      *string
	Helpfulness      *string
	Score            *float64
	Time             *int64
	Summary          *string
	Text             *string
	PriceText        *string
}
