// Package validator runs the pre-flight checks of a translation path and the
// post-hop check that translated content is in the expected language.
package validator

import (
	"strings"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/detector"
	"github.com/valpere/polytran/internal/errs"
)

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

// LanguageChecker checks that translated content is written in the target
// language. The underlying detector is expensive to build; reuse the instance.
type LanguageChecker struct {
	det *detector.Detector
}

// NewLanguageChecker creates a checker backed by the shared lingua detector.
func NewLanguageChecker() *LanguageChecker {
	return &LanguageChecker{det: detector.Shared()}
}

// IsValid returns nil when translatedText appears to be written in targetLang.
//
// Short texts (fewer than minValidationLength runes) and texts whose language
// cannot be determined pass. A mismatch is an invalid_output_format error
// naming both codes.
func (c *LanguageChecker) IsValid(translatedText, targetLang string) error {
	if targetLang == "" {
		return nil
	}

	text := detector.PlainText(translatedText)
	if text == "" {
		return errs.Format("translation is empty")
	}

	if len([]rune(text)) < minValidationLength {
		return nil
	}

	detected, ok := c.det.DetectISO(text)
	if !ok {
		return nil
	}

	// "pt-br" is satisfied by detected "pt"
	base, _, _ := strings.Cut(strings.ToLower(targetLang), "-")
	if detected != base {
		return errs.Format("expected %s but detected %s", targetLang, detected)
	}
	return nil
}

// CheckBundle validates the content field of b, or the title when the
// content is empty.
func (c *LanguageChecker) CheckBundle(b internal.ContentBundle, targetLang string) error {
	text := b.Content
	if strings.TrimSpace(detector.PlainText(text)) == "" {
		text = b.Title
	}
	return c.IsValid(text, targetLang)
}
