package domain

import "strings"

// NormalizeTitle maps a raw title to its canonical lookup key: surrounding
// whitespace removed, all characters lowercased. A missing or blank title
// normalizes to the empty string, which never appears in the title index.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
