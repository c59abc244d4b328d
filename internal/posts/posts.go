// Package posts keeps content bundles in the settings store: the original
// under "post:<id>" and each translation under "post:<id>:<lang>".
package posts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/resolver"
	"github.com/valpere/polytran/internal/store"
)

const prefix = "post:"

// Key is the store key of the original post.
func Key(id string) string {
	return prefix + id
}

// TranslationKey is the store key of the post translated into lang.
func TranslationKey(id, lang string) string {
	return prefix + id + ":" + resolver.Canonical(lang)
}

// Store reads and writes posts.
type Store struct {
	s store.ConfigStore
}

func New(s store.ConfigStore) *Store {
	return &Store{s: s}
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" || strings.Contains(id, ":") {
		return fmt.Errorf("invalid post id %q", id)
	}
	return nil
}

func (p *Store) Get(ctx context.Context, id string) (internal.ContentBundle, error) {
	var b internal.ContentBundle
	if err := validID(id); err != nil {
		return b, err
	}
	err := store.GetJSON(ctx, p.s, Key(id), &b)
	return b, err
}

func (p *Store) Save(ctx context.Context, id string, b internal.ContentBundle) error {
	if err := validID(id); err != nil {
		return err
	}
	return store.SetJSON(ctx, p.s, Key(id), b)
}

func (p *Store) GetTranslation(ctx context.Context, id, lang string) (internal.ContentBundle, error) {
	var b internal.ContentBundle
	if err := validID(id); err != nil {
		return b, err
	}
	err := store.GetJSON(ctx, p.s, TranslationKey(id, lang), &b)
	return b, err
}

func (p *Store) SaveTranslation(ctx context.Context, id, lang string, b internal.ContentBundle) error {
	if err := validID(id); err != nil {
		return err
	}
	return store.SetJSON(ctx, p.s, TranslationKey(id, lang), b)
}

// Languages lists the languages the post has been translated into.
func (p *Store) Languages(ctx context.Context, id string) ([]string, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	keys, err := p.s.Keys(ctx, Key(id)+":")
	if err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(keys))
	for _, k := range keys {
		langs = append(langs, strings.TrimPrefix(k, Key(id)+":"))
	}
	sort.Strings(langs)
	return langs, nil
}
