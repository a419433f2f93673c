package character

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale is used by Merge for name ordering.
var DefaultLocale = language.English

// Merge derives the display list from the accumulated list using
// DefaultLocale. See MergeLocale.
func Merge(accumulated []Character) []Character {
	return MergeLocale(DefaultLocale, accumulated)
}

// MergeLocale deduplicates accumulated by Key (first occurrence wins) and
// orders the result: blue-eyed characters first, sorted by name with the
// collation rules of tag, then everyone else sorted by creation time, oldest
// first. Records with a missing or unparsable created value sort as the
// earliest. Both sorts are stable, so ties keep first-occurrence order.
//
// The input is never modified and the result is a fresh slice.
func MergeLocale(tag language.Tag, accumulated []Character) []Character {
	unique := dedupe(accumulated)

	var blue, other []Character
	for _, c := range unique {
		if c.IsBlueEyed() {
			blue = append(blue, c)
		} else {
			other = append(other, c)
		}
	}

	// Collators keep internal buffers and are not safe to share.
	col := collate.New(tag)
	slices.SortStableFunc(blue, func(a, b Character) int {
		return col.CompareString(a.Name, b.Name)
	})

	slices.SortStableFunc(other, compareCreated)

	out := make([]Character, 0, len(unique))
	out = append(out, blue...)
	return append(out, other...)
}

func dedupe(list []Character) []Character {
	seen := make(map[string]struct{}, len(list))
	out := make([]Character, 0, len(list))
	for _, c := range list {
		k := c.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// compareCreated orders by creation time with invalid timestamps first.
func compareCreated(a, b Character) int {
	ta, okA := a.CreatedAt()
	tb, okB := b.CreatedAt()
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	default:
		return ta.Compare(tb)
	}
}
