// Package detector identifies the language of translated content.
package detector

import (
	"html"
	"regexp"
	"strings"
	"sync"

	lingua "github.com/pemistahl/lingua-go"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		WithPreloadedLanguageModels().
		Build()

	return &Detector{detector: detector}
}

var (
	sharedOnce sync.Once
	shared     *Detector
)

// Shared returns a process-wide detector. Building one loads every language
// model, so callers that detect repeatedly should use this instance.
func Shared() *Detector {
	sharedOnce.Do(func() { shared = New() })
	return shared
}

// Detect reports the language of text after HTML tags and entities are
// stripped.
func (d *Detector) Detect(text string) (lingua.Language, bool) {
	text = PlainText(text)
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the lowercase ISO 639-1 code of text.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// PlainText drops markup from HTML content and collapses whitespace.
func PlainText(s string) string {
	s = html.UnescapeString(tagRe.ReplaceAllString(s, " "))
	return strings.Join(strings.Fields(s), " ")
}
