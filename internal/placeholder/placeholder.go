// Package placeholder shields markup from LLM-backed translators. Code
// blocks, HTML tags, block comments and shortcodes are swapped for numbered
// markers ([PH0], [PH1], …) before translation and put back afterwards.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	reFencedCode = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`[^`]+`")

	// HTML tags and <!-- block comments -->
	reHTMLTag = regexp.MustCompile(`(?s)<!--.*?-->|<[^>]+>`)

	// [gallery ids="1,2"], [/caption]; lowercase names only so markers never match
	reShortcode = regexp.MustCompile(`\[/?[a-z_][a-z0-9_-]*(?:\s[^\]]*)?\]`)

	rePlaceholder = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Set holds the originals captured by Protect, indexed by marker number.
type Set struct {
	originals []string
}

// Len is the number of protected fragments.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.originals)
}

// Protect replaces structured fragments of text with markers. Fenced code is
// captured first so tags inside code blocks stay part of the block.
func Protect(text string) (string, *Set) {
	s := &Set{}

	replace := func(match string) string {
		id := fmt.Sprintf("[PH%d]", len(s.originals))
		s.originals = append(s.originals, match)
		return id
	}

	for _, re := range []*regexp.Regexp{reFencedCode, reInlineCode, reHTMLTag, reShortcode} {
		text = re.ReplaceAllStringFunc(text, replace)
	}
	return text, s
}

// Restore substitutes markers in text with their originals. It returns the
// restored text together with the indices of markers the translator dropped.
func (s *Set) Restore(text string) (string, []int) {
	if s.Len() == 0 {
		return text, nil
	}

	seen := make([]bool, len(s.originals))
	restored := rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		idx, err := strconv.Atoi(rePlaceholder.FindStringSubmatch(match)[1])
		if err != nil || idx < 0 || idx >= len(s.originals) {
			return match
		}
		seen[idx] = true
		return s.originals[idx]
	})

	var missing []int
	for i, ok := range seen {
		if !ok {
			missing = append(missing, i)
		}
	}
	return restored, missing
}

// InstructionHint is appended to LLM prompts when text carries markers.
func InstructionHint() string {
	return "Preserve all [PHn] markers exactly as they appear. Do not translate, move, or remove them."
}
