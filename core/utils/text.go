package utils

import (
	"strings"
	"unicode"
)

// Slugify converts a folder or file name into a URL-safe identifier.
// Letters and digits are lowercased; every other run of characters
// collapses into a single hyphen. Leading and trailing hyphens are trimmed.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Titleize turns a folder or file name into a display title:
// separators ('-', '_') become spaces and each word is capitalized.
func Titleize(name string) string {
	replaced := strings.NewReplacer("-", " ", "_", " ").Replace(name)
	words := strings.Fields(replaced)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// BaseName strips the extension from a file name.
func BaseName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
