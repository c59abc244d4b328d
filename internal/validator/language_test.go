package validator

import (
	"testing"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/errs"
)

func TestIsValid_EmptyTargetLang(t *testing.T) {
	c := NewLanguageChecker()

	if err := c.IsValid("Some translated text", ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIsValid_EmptyTranslation(t *testing.T) {
	c := NewLanguageChecker()

	err := c.IsValid("", "en")
	if err == nil {
		t.Fatal("expected error for empty translation")
	}
	if errs.KindOf(err) != errs.KindFormat {
		t.Errorf("kind = %s, want %s", errs.KindOf(err), errs.KindFormat)
	}
}

func TestIsValid_MarkupOnlyTranslation(t *testing.T) {
	c := NewLanguageChecker()

	if err := c.IsValid("<p>  </p>", "en"); err == nil {
		t.Error("expected error for markup-only translation")
	}
}

func TestIsValid_ShortText(t *testing.T) {
	c := NewLanguageChecker()

	if err := c.IsValid("Hi", "uk"); err != nil {
		t.Errorf("short text should pass: %v", err)
	}
}

func TestIsValid_EnglishToEnglish(t *testing.T) {
	c := NewLanguageChecker()

	text := "This is a longer piece of text that should be detected as English."
	if err := c.IsValid(text, "en"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := c.IsValid(text, "en-GB"); err != nil {
		t.Errorf("region subtag should match base language: %v", err)
	}
}

func TestIsValid_MismatchedLanguage(t *testing.T) {
	c := NewLanguageChecker()

	englishText := "This is a longer piece of text that should be detected as English."
	err := c.IsValid(englishText, "uk")
	if err == nil {
		t.Fatal("expected error for mismatched language")
	}
	if errs.KindOf(err) != errs.KindFormat {
		t.Errorf("kind = %s, want %s", errs.KindOf(err), errs.KindFormat)
	}
}

func TestIsValid_UkrainianHTML(t *testing.T) {
	c := NewLanguageChecker()

	text := "<p>Це є тестовий текст українською мовою для перевірки роботи валідатора.</p>"
	if err := c.IsValid(text, "uk"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckBundle_FallsBackToTitle(t *testing.T) {
	c := NewLanguageChecker()

	b := internal.ContentBundle{Title: "This is a title long enough to be detected as English text"}
	if err := c.CheckBundle(b, "en"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := c.CheckBundle(b, "de"); err == nil {
		t.Error("expected mismatch against de")
	}
}
