package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"plain", "plain"},
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"<h2>Caf&eacute;</h2>\n\n<p>au lait</p>", "Café au lait"},
		{"  many\t\tspaces \n here ", "many spaces here"},
		{`<img src="x.png"/>`, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PlainText(c.in), "PlainText(%q)", c.in)
	}
}

func TestDetectISO(t *testing.T) {
	d := Shared()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "Hello, this is a short post written in English.", "en"},
		{"ukrainian", "Привіт, це короткий допис українською мовою.", "uk"},
		{"german", "Hallo, das ist ein kurzer Beitrag auf Deutsch.", "de"},
		{
			"html french",
			"<article><h1>Bonjour</h1><p>Ceci est un article &eacute;crit en fran&ccedil;ais.</p></article>",
			"fr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.DetectISO(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_MarkupOnly(t *testing.T) {
	for _, text := range []string{"", "   ", "<div><br/></div>"} {
		_, ok := Shared().Detect(text)
		assert.False(t, ok, "Detect(%q)", text)

		code, ok := Shared().DetectISO(text)
		assert.False(t, ok)
		assert.Empty(t, code)
	}
}

func TestShared_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, Shared(), Shared())
}
