package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"

	"github.com/galeriehaus/artbridge/internal/webflow"
)

// aggregate holds the derived reference fields of one creator: the works
// pointing at it and the taxonomy references unioned over those works.
type aggregate struct {
	finishes  map[string]bool
	materials map[string]bool
	mediums   map[string]bool
	works     []string
}

// resolveReferences is the back-reference pass. It recomputes each
// creator's works list and taxonomy aggregates from the artworks as they now
// exist in the target, and patches every creator whose derived fields
// changed. Creators with no artworks get empty lists written, not skipped;
// skipping would leave stale references behind forever. Recomputing from
// scratch makes the pass idempotent: a second pass over unchanged data
// patches nothing.
func (e *Engine) resolveReferences(ctx context.Context, result *Result, logger *slog.Logger) error {
	primary := webflow.Locale(e.locales.Primary)

	creators, err := e.target.ListItems(ctx, e.collections.Creators, primary)
	if err != nil {
		return fmt.Errorf("listing creators: %w", err)
	}
	artworks, err := e.target.ListItems(ctx, e.collections.Artworks, primary)
	if err != nil {
		return fmt.Errorf("listing artworks: %w", err)
	}

	aggregates := make(map[string]*aggregate, len(creators))
	for _, creator := range creators {
		aggregates[creator.ID] = &aggregate{
			finishes:  make(map[string]bool),
			materials: make(map[string]bool),
			mediums:   make(map[string]bool),
		}
	}

	for _, artwork := range artworks {
		creatorID, _ := artwork.FieldData["creator"].(string)
		agg, ok := aggregates[creatorID]
		if !ok {
			continue
		}
		agg.works = append(agg.works, artwork.ID)
		collectIDs(artwork.FieldData["materials"], agg.materials)
		collectIDs(artwork.FieldData["finishes"], agg.finishes)
		collectIDs(artwork.FieldData["mediums"], agg.mediums)
	}

	var patches []webflow.ItemUpdate
	for _, creator := range creators {
		agg := aggregates[creator.ID]
		fields := webflow.FieldData{
			"works":     sortedCopy(agg.works),
			"materials": sortedKeys(agg.materials),
			"finishes":  sortedKeys(agg.finishes),
			"mediums":   sortedKeys(agg.mediums),
		}

		if fieldsMatch(creator.FieldData, fields) {
			continue
		}
		patches = append(patches, webflow.ItemUpdate{FieldData: fields, ID: creator.ID})
	}

	logger.Info("resolving back-references",
		"creators", len(creators),
		"artworks", len(artworks),
		"changed", len(patches))

	// Reference fields are shared across locale variants; the patch goes
	// through the primary locale scope.
	tr := &TypeResult{}
	var mu gosync.Mutex
	if err := e.patchBatches(ctx, e.collections.Creators, primary, patches, tr, nil, &mu, logger); err != nil {
		return err
	}

	ct, ok := result.Types[EntityCreator]
	if !ok {
		// A filtered run can reach this pass without having synced
		// creators; the patch failures still need a home in the result.
		ct = &TypeResult{}
		result.Types[EntityCreator] = ct
	}
	ct.Failed += tr.Failed
	ct.Errors = append(ct.Errors, tr.Errors...)
	result.ReferencesUpdated = len(patches) - tr.Failed

	return nil
}

// collectIDs accumulates the string IDs of a multi-reference field value
// into the set. Field values read back from the target decode as []any.
func collectIDs(value any, into map[string]bool) {
	switch ids := value.(type) {
	case []any:
		for _, id := range ids {
			if s, ok := id.(string); ok && s != "" {
				into[s] = true
			}
		}
	case []string:
		for _, s := range ids {
			if s != "" {
				into[s] = true
			}
		}
	}
}

// sortedKeys returns the set's members in sorted order. Always non-nil so
// the zero case writes an empty list.
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedCopy returns a sorted copy of the IDs. Always non-nil.
func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
