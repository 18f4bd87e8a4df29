package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hiking Boots":         "hiking-boots",
		"  Men's  T-Shirts  ":  "men-s-t-shirts",
		"4K TV (55\")":         "4k-tv-55",
		"already-a-slug":       "already-a-slug",
		"--Lots---of--dashes-": "lots-of-dashes",
		"":                     "",
		"!!!":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestValidSlug(t *testing.T) {
	assert.NoError(t, validSlug("boots-2"))
	assert.ErrorIs(t, validSlug(""), ErrInvalidInput)
	assert.ErrorIs(t, validSlug("Boots"), ErrInvalidInput)
	assert.ErrorIs(t, validSlug("boots--2"), ErrInvalidInput)
	assert.ErrorIs(t, validSlug("boots-deleted-1714564800"), ErrInvalidInput)
}

func TestDerivedSlug(t *testing.T) {
	slug, err := derivedSlug("Hiking Boots", "")
	assert.NoError(t, err)
	assert.Equal(t, "hiking-boots", slug)

	slug, err = derivedSlug("Кофе", "kofe")
	assert.NoError(t, err)
	assert.Equal(t, "kofe", slug)

	_, err = derivedSlug("Кофе", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "produces an empty slug; supply slug explicitly")
}
