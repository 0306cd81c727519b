package utils

import (
	"github.com/gosimple/slug"
)

// Slugify transliterates s into a URL slug, returning fallback when
// nothing usable remains.
func Slugify(s, fallback string) string {
	out := slug.Make(s)
	if out == "" {
		return fallback
	}
	return out
}
