package sync

import (
	"strings"

	"github.com/galeriehaus/artbridge/internal/webflow"
)

// umlauts maps German characters to their ASCII transliterations so slugs
// derived from German names stay stable.
var umlauts = strings.NewReplacer(
	"ä", "ae", "Ä", "ae",
	"ö", "oe", "Ö", "oe",
	"ü", "ue", "Ü", "ue",
	"ß", "ss",
)

// Slugify normalizes a display name into a URL-safe natural key. The result
// is a pure function of the input: lowercased, umlauts transliterated, runs
// of non-alphanumeric characters collapsed into single hyphens.
func Slugify(name string) string {
	s := strings.ToLower(umlauts.Replace(strings.TrimSpace(name)))

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}

// Index maps natural keys to target item IDs for one collection. It is
// rebuilt from the target at the start of every type pass, which makes an
// interrupted previous run safe to retry: already-created items resolve
// instead of being created again.
type Index struct {
	byKey      map[string]string
	duplicates []Duplicate
}

// BuildIndex indexes target items by natural key. When two items share a
// key, the earliest-created one wins (ties broken by smaller ID) and the
// rest are flagged for the dedupe pass.
func BuildIndex(items []webflow.Item, key func(webflow.Item) string) *Index {
	idx := &Index{byKey: make(map[string]string, len(items))}

	created := make(map[string]webflow.Item, len(items))
	for _, item := range items {
		k := key(item)
		if k == "" {
			continue
		}

		prev, ok := created[k]
		if !ok {
			created[k] = item
			idx.byKey[k] = item.ID
			continue
		}

		kept, extra := prev, item
		if item.CreatedOn.Before(prev.CreatedOn) ||
			(item.CreatedOn.Equal(prev.CreatedOn) && item.ID < prev.ID) {
			kept, extra = item, prev
		}

		created[k] = kept
		idx.byKey[k] = kept.ID
		idx.duplicates = append(idx.duplicates, Duplicate{
			ExtraID:    extra.ID,
			KeptID:     kept.ID,
			NaturalKey: k,
		})
	}

	return idx
}

// Resolve returns the target item ID for a natural key, if known.
func (i *Index) Resolve(key string) (string, bool) {
	id, ok := i.byKey[key]
	return id, ok
}

// Register records a newly created item so later lookups in the same run
// resolve it without a second index rebuild.
func (i *Index) Register(key string, targetID string) {
	i.byKey[key] = targetID
}

// Duplicates returns the items flagged during the build.
func (i *Index) Duplicates() []Duplicate {
	return i.duplicates
}
