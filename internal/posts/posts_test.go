package posts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/store"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	p := New(store.NewMemory().Settings())

	_, err := p.Get(ctx, "42")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	orig := internal.ContentBundle{Title: "Hello", Meta: map[string]string{"k": "v"}}
	require.NoError(t, p.Save(ctx, "42", orig))
	require.NoError(t, p.SaveTranslation(ctx, "42", "FR", internal.ContentBundle{Title: "Bonjour"}))
	require.NoError(t, p.SaveTranslation(ctx, "42", "pt_BR", internal.ContentBundle{Title: "Olá"}))
	require.NoError(t, p.Save(ctx, "420", internal.ContentBundle{Title: "other"}))

	got, err := p.Get(ctx, "42")
	require.NoError(t, err)
	assert.True(t, got.Equal(orig))

	fr, err := p.GetTranslation(ctx, "42", "fr")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", fr.Title)

	langs, err := p.Languages(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"fr", "pt-br"}, langs)

	assert.Error(t, p.Save(ctx, "a:b", orig))
	assert.Error(t, p.Save(ctx, " ", orig))
}
