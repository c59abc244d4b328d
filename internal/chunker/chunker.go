// Package chunker splits long fields into pieces a size-limited provider
// accepts. Pieces keep their separators, so joining them restores the input
// exactly.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Split cuts text into pieces of at most maxChars runes, preferring, in
// order, a blank line, a closing block tag, the end of a sentence and a
// space. A piece is cut hard only when none of these occur. maxChars <= 0
// disables splitting.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var pieces []string
	rest := text
	for utf8.RuneCountInString(rest) > maxChars {
		cut := splitPoint(rest, maxChars)
		pieces = append(pieces, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" {
		pieces = append(pieces, rest)
	}
	return pieces
}

var blockClosers = []string{"</p>", "</li>", "</ul>", "</ol>", "</blockquote>", "</h1>", "</h2>", "</h3>", "</h4>", "</div>", "<br>", "<br/>", "<br />"}

// splitPoint returns the byte offset ending the first piece of text.
func splitPoint(text string, maxChars int) int {
	window := prefix(text, maxChars)

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return i + 2
	}

	best := -1
	for _, tag := range blockClosers {
		if i := strings.LastIndex(window, tag); i > 0 && i+len(tag) > best {
			best = i + len(tag)
		}
	}
	if best > 0 {
		return best
	}

	// sentence end followed by whitespace; the whitespace stays with the piece
	for i := len(window) - 2; i > 0; i-- {
		if c := window[i]; (c == '.' || c == '!' || c == '?') && isSpace(window[i+1]) {
			return i + 2
		}
	}

	if i := strings.LastIndexFunc(window, unicode.IsSpace); i > 0 {
		_, size := utf8.DecodeRuneInString(window[i:])
		return i + size
	}
	return len(window)
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	i := 0
	for count := 0; count < n && i < len(s); count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// Trim separates the surrounding whitespace of piece from its core so the
// core can be translated and the whitespace put back.
func Trim(piece string) (lead, core, trail string) {
	core = strings.TrimLeftFunc(piece, unicode.IsSpace)
	lead = piece[:len(piece)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsSpace)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}
