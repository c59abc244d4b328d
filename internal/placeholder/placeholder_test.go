package placeholder

import (
	"strings"
	"testing"
)

func TestProtect_NoMarkup(t *testing.T) {
	text := "Plain sentence without markup."
	out, set := Protect(text)

	if out != text {
		t.Errorf("expected unchanged text, got %q", out)
	}
	if set.Len() != 0 {
		t.Errorf("expected 0 markers, got %d", set.Len())
	}
}

func TestProtect_HTMLAndBlockComments(t *testing.T) {
	text := `<!-- wp:paragraph --><p>Hello <strong>world</strong></p><!-- /wp:paragraph -->`
	out, set := Protect(text)

	if strings.Contains(out, "<") {
		t.Errorf("expected all tags protected, got %q", out)
	}
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "world") {
		t.Errorf("expected text nodes kept, got %q", out)
	}
	if set.Len() != 6 {
		t.Errorf("expected 6 markers, got %d", set.Len())
	}
}

func TestProtect_FencedCodeKeepsInnerTags(t *testing.T) {
	text := "Intro\n```\n<div>code</div>\n```\nOutro"
	out, set := Protect(text)

	if set.Len() != 1 {
		t.Fatalf("expected the fenced block as a single marker, got %d", set.Len())
	}
	if out != "Intro\n[PH0]\nOutro" {
		t.Errorf("unexpected protected text %q", out)
	}
}

func TestProtect_Shortcodes(t *testing.T) {
	text := `[caption id="12"]A photo[/caption] and [PH9] stays`
	out, set := Protect(text)

	if set.Len() != 2 {
		t.Fatalf("expected 2 shortcode markers, got %d (%q)", set.Len(), out)
	}
	if !strings.Contains(out, "[PH9]") {
		t.Errorf("existing uppercase marker must not be captured: %q", out)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	text := "<p>Use `go test` in <em>every</em> package</p>"
	protected, set := Protect(text)

	restored, missing := set.Restore(protected)
	if restored != text {
		t.Errorf("round trip mismatch:\nwant %q\ngot  %q", text, restored)
	}
	if len(missing) != 0 {
		t.Errorf("expected no missing markers, got %v", missing)
	}
}

func TestRestore_ReportsMissing(t *testing.T) {
	_, set := Protect("<p>a</p>")

	restored, missing := set.Restore("[PH0] a")
	if restored != "<p> a" {
		t.Errorf("unexpected restore %q", restored)
	}
	if len(missing) != 1 || missing[0] != 1 {
		t.Errorf("expected marker 1 missing, got %v", missing)
	}
}

func TestRestore_UnknownIndexLeftAlone(t *testing.T) {
	_, set := Protect("<b>x</b>")

	restored, _ := set.Restore("[PH0]x[PH1] [PH7]")
	if restored != "<b>x</b> [PH7]" {
		t.Errorf("unexpected restore %q", restored)
	}
}

func TestRestore_NilSet(t *testing.T) {
	var set *Set
	if got, missing := set.Restore("text"); got != "text" || missing != nil {
		t.Errorf("nil set should pass text through, got %q %v", got, missing)
	}
}
