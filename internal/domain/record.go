package domain

// BookRecord is one raw row from the books source. All fields are untyped
// text exactly as read; empty string means the column was absent or blank.
type BookRecord struct {
	Title         string
	Authors       string
	Description   string
	Image         string
	PreviewLink   string
	Publisher     string
	PublishedDate string
	InfoLink      string
	Categories    string
	RatingsCount  string
}

// ReviewRecord is one raw row from the reviews source.
type ReviewRecord struct {
	ID          string
	Title       string
	Price       string
	UserID      string
	ProfileName string
	Helpfulness string
	Score       string
	Time        string
	Summary     string
	Text        string
}
