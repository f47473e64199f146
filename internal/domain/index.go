package domain

// TitleIndex maps normalized titles to persisted book ids. It is built once
// after the book pass, consumed by the review pass, then discarded. Never
// persisted.
type TitleIndex map[string]int64

// Put records a title under its normalized key. Distinct titles that
// normalize to the same key overwrite each other, last write wins.
func (idx TitleIndex) Put(title string, id int64) {
	key := NormalizeTitle(title)
	if key == "" {
		return
	}
	idx[key] = id
}

// Lookup resolves a raw title to a book id via its normalized key.
func (idx TitleIndex) Lookup(title string) (int64, bool) {
	id, ok := idx[NormalizeTitle(title)]
	return id, ok
}
