package internal

// FeaturedImage describes the image attached to a content bundle. Only the
// textual fields are ever translated.
type FeaturedImage struct {
	ID      string `json:"id" yaml:"id"`
	URL     string `json:"url" yaml:"url"`
	Alt     string `json:"alt" yaml:"alt"`
	Caption string `json:"caption" yaml:"caption"`
}

// ContentBundle is the unit of content that flows through every hop and
// workflow step. Hops never mutate the bundle they receive.
type ContentBundle struct {
	Title         string            `json:"title" yaml:"title"`
	Content       string            `json:"content" yaml:"content"`
	Excerpt       string            `json:"excerpt" yaml:"excerpt"`
	Meta          map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
	FeaturedImage *FeaturedImage    `json:"featured_image,omitempty" yaml:"featured_image,omitempty"`
}

// Clone returns a deep copy so callers can build a new bundle from an old one.
func (b ContentBundle) Clone() ContentBundle {
	out := b
	if b.Meta != nil {
		out.Meta = make(map[string]string, len(b.Meta))
		for k, v := range b.Meta {
			out.Meta[k] = v
		}
	}
	if b.FeaturedImage != nil {
		img := *b.FeaturedImage
		out.FeaturedImage = &img
	}
	return out
}

// Equal reports whether two bundles carry identical values.
func (b ContentBundle) Equal(o ContentBundle) bool {
	if b.Title != o.Title || b.Content != o.Content || b.Excerpt != o.Excerpt {
		return false
	}
	if len(b.Meta) != len(o.Meta) {
		return false
	}
	for k, v := range b.Meta {
		if ov, ok := o.Meta[k]; !ok || ov != v {
			return false
		}
	}
	switch {
	case b.FeaturedImage == nil && o.FeaturedImage == nil:
		return true
	case b.FeaturedImage == nil || o.FeaturedImage == nil:
		return false
	}
	return *b.FeaturedImage == *o.FeaturedImage
}

// AsMap exposes the bundle to template rendering and workflow contexts.
func (b ContentBundle) AsMap() map[string]any {
	meta := make(map[string]any, len(b.Meta))
	for k, v := range b.Meta {
		meta[k] = v
	}
	m := map[string]any{
		"title":   b.Title,
		"content": b.Content,
		"excerpt": b.Excerpt,
		"meta":    meta,
	}
	if b.FeaturedImage != nil {
		m["featured_image"] = map[string]any{
			"id":      b.FeaturedImage.ID,
			"url":     b.FeaturedImage.URL,
			"alt":     b.FeaturedImage.Alt,
			"caption": b.FeaturedImage.Caption,
		}
	}
	return m
}
