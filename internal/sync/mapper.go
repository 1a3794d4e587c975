package sync

import (
	"github.com/galeriehaus/artbridge/internal/assetcache"
	"github.com/galeriehaus/artbridge/internal/sanity"
	"github.com/galeriehaus/artbridge/internal/webflow"
)

// mapContext provides the lookups a mapping needs. All three are in-memory
// closures; mapping itself performs no I/O.
type mapContext struct {
	// asset resolves a source asset ID to its uploaded target mapping.
	asset func(sourceAssetID string) (assetcache.Mapping, bool)

	// name resolves a source document ID to its display name.
	name func(sourceID string) (string, bool)

	// ref resolves a source document ID to its target item ID.
	ref func(sourceID string) (string, bool)
}

// typeSpec describes how one entity type maps from source to target.
type typeSpec struct {
	// sourceType is the Sanity document type.
	sourceType string

	// assetRefs returns the source asset IDs the document references.
	assetRefs func(doc sanity.Document) []string

	// displayName returns the document's display name.
	displayName func(doc sanity.Document) string

	// naturalKey derives the stable key matching the document to its target
	// item.
	naturalKey func(doc sanity.Document, mc mapContext) string

	// mapFields maps the document to its primary and secondary locale field
	// sets. Unresolved references are omitted from the field sets and
	// reported.
	mapFields func(doc sanity.Document, key string, mc mapContext) (
		primary webflow.FieldData,
		secondary webflow.FieldData,
		unresolved []UnresolvedReference,
	)
}

// specs is the per-type mapping registry.
var specs = map[EntityType]typeSpec{
	EntityMaterial: taxonomySpec("material"),
	EntityFinish:   taxonomySpec("finish"),
	EntityMedium:   taxonomySpec("medium"),
	EntityCategory: taxonomySpec("category"),
	EntityLocation: {
		sourceType:  "location",
		assetRefs:   func(sanity.Document) []string { return nil },
		displayName: localizedName,
		naturalKey:  slugOrName,
		mapFields:   mapLocation,
	},
	EntityCreator: {
		sourceType: "creator",
		assetRefs: func(doc sanity.Document) []string {
			if id, ok := doc.ImageRef("portrait"); ok {
				return []string{id}
			}
			return nil
		},
		displayName: plainName,
		naturalKey:  slugOrName,
		mapFields:   mapCreator,
	},
	EntityArtwork: {
		sourceType: "artwork",
		assetRefs: func(doc sanity.Document) []string {
			var ids []string
			if id, ok := doc.ImageRef("mainImage"); ok {
				ids = append(ids, id)
			}
			return append(ids, doc.ImageRefs("gallery")...)
		},
		displayName: func(doc sanity.Document) string {
			title, _ := doc.Localized("title")
			return title.EN
		},
		naturalKey: artworkKey,
		mapFields:  mapArtwork,
	},
}

// taxonomySpec builds the spec shared by the flat taxonomy types.
func taxonomySpec(sourceType string) typeSpec {
	return typeSpec{
		sourceType:  sourceType,
		assetRefs:   func(sanity.Document) []string { return nil },
		displayName: localizedName,
		naturalKey:  slugOrName,
		mapFields:   mapTaxonomy,
	}
}

func localizedName(doc sanity.Document) string {
	name, _ := doc.Localized("name")
	return name.EN
}

func plainName(doc sanity.Document) string {
	name, _ := doc.String("name")
	return name
}

// slugOrName prefers the document's own slug, falling back to a slug derived
// from the display name. Creators carry a plain name; every other type using
// this key has a localized one.
func slugOrName(doc sanity.Document, _ mapContext) string {
	if slug, ok := doc.Slug("slug"); ok {
		return Slugify(slug)
	}
	if doc.Type == "creator" {
		return Slugify(plainName(doc))
	}
	return Slugify(localizedName(doc))
}

// artworkKey derives the composite natural key for artworks without a slug of
// their own: the creator's name joined with the title. Titles alone repeat
// across creators ("Untitled"), so the creator disambiguates.
func artworkKey(doc sanity.Document, mc mapContext) string {
	if slug, ok := doc.Slug("slug"); ok {
		return Slugify(slug)
	}

	title, _ := doc.Localized("title")
	key := Slugify(title.EN)
	if key == "" {
		return ""
	}

	if creatorID, ok := doc.Ref("creator"); ok {
		if creatorName, ok := mc.name(creatorID); ok {
			return Slugify(creatorName) + "_" + key
		}
	}

	return key
}

func mapTaxonomy(doc sanity.Document, key string, _ mapContext) (webflow.FieldData, webflow.FieldData, []UnresolvedReference) {
	name, _ := doc.Localized("name")

	primary := webflow.FieldData{
		"name": name.EN,
		"slug": key,
	}
	secondary := webflow.FieldData{}
	if name.DE != "" {
		secondary["name"] = name.DE
	}

	return primary, secondary, nil
}

func mapLocation(doc sanity.Document, key string, _ mapContext) (webflow.FieldData, webflow.FieldData, []UnresolvedReference) {
	name, _ := doc.Localized("name")

	primary := webflow.FieldData{
		"name": name.EN,
		"slug": key,
	}
	if city, ok := doc.String("city"); ok {
		primary["city"] = city
	}
	if country, ok := doc.String("country"); ok {
		primary["country"] = country
	}
	if website, ok := doc.String("website"); ok {
		primary["website"] = website
	}

	secondary := webflow.FieldData{}
	if name.DE != "" {
		secondary["name"] = name.DE
	}

	return primary, secondary, nil
}

func mapCreator(doc sanity.Document, key string, mc mapContext) (webflow.FieldData, webflow.FieldData, []UnresolvedReference) {
	name, _ := doc.String("name")
	bio, _ := doc.BlockText("biography")

	primary := webflow.FieldData{
		"name": name,
		"slug": key,
	}
	if bio.EN != "" {
		primary["biography"] = bio.EN
	}
	if website, ok := doc.String("website"); ok {
		primary["website"] = website
	}
	if assetID, ok := doc.ImageRef("portrait"); ok {
		if m, ok := mc.asset(assetID); ok {
			primary["portrait"] = webflow.ImageValue(m.TargetAssetID, m.URL)
		}
	}

	secondary := webflow.FieldData{}
	if bio.DE != "" {
		secondary["biography"] = bio.DE
	}

	return primary, secondary, nil
}

func mapArtwork(doc sanity.Document, key string, mc mapContext) (webflow.FieldData, webflow.FieldData, []UnresolvedReference) {
	title, _ := doc.Localized("title")
	desc, _ := doc.BlockText("description")

	primary := webflow.FieldData{
		"name": title.EN,
		"slug": key,
	}
	if year, ok := doc.Int("year"); ok {
		primary["year"] = year
	}
	if dims, ok := doc.String("dimensions"); ok {
		primary["dimensions"] = dims
	}
	if desc.EN != "" {
		primary["description"] = desc.EN
	}

	var unresolved []UnresolvedReference
	resolveRef(doc, "creator", "creator", primary, mc, &unresolved)
	resolveRef(doc, "location", "location", primary, mc, &unresolved)
	resolveRef(doc, "category", "category", primary, mc, &unresolved)
	resolveRefList(doc, "materials", "materials", primary, mc, &unresolved)
	resolveRefList(doc, "finishes", "finishes", primary, mc, &unresolved)
	resolveRefList(doc, "mediums", "mediums", primary, mc, &unresolved)

	if assetID, ok := doc.ImageRef("mainImage"); ok {
		if m, ok := mc.asset(assetID); ok {
			primary["main-image"] = webflow.ImageValue(m.TargetAssetID, m.URL)
		}
	}
	if ids := doc.ImageRefs("gallery"); len(ids) > 0 {
		gallery := make([]any, 0, len(ids))
		for _, assetID := range ids {
			if m, ok := mc.asset(assetID); ok {
				gallery = append(gallery, webflow.ImageValue(m.TargetAssetID, m.URL))
			}
		}
		if len(gallery) > 0 {
			primary["gallery"] = gallery
		}
	}

	secondary := webflow.FieldData{}
	if title.DE != "" {
		secondary["name"] = title.DE
	}
	if desc.DE != "" {
		secondary["description"] = desc.DE
	}

	return primary, secondary, unresolved
}

// resolveRef maps a single-valued reference field to the referenced entity's
// target item ID. An unresolved reference is omitted, never written as null,
// so a prior valid value on the target survives.
func resolveRef(
	doc sanity.Document,
	sourceField string,
	targetField string,
	fields webflow.FieldData,
	mc mapContext,
	unresolved *[]UnresolvedReference,
) {
	refID, ok := doc.Ref(sourceField)
	if !ok {
		return
	}

	targetID, ok := mc.ref(refID)
	if !ok {
		*unresolved = append(*unresolved, UnresolvedReference{
			Field:    targetField,
			RefID:    refID,
			SourceID: doc.ID,
			Type:     EntityType(doc.Type),
		})
		return
	}

	fields[targetField] = targetID
}

// resolveRefList maps a multi-valued reference field. Unresolved entries are
// dropped individually; the field is written with the entries that did
// resolve, or omitted entirely when none did.
func resolveRefList(
	doc sanity.Document,
	sourceField string,
	targetField string,
	fields webflow.FieldData,
	mc mapContext,
	unresolved *[]UnresolvedReference,
) {
	refIDs := doc.Refs(sourceField)
	if len(refIDs) == 0 {
		return
	}

	resolved := make([]string, 0, len(refIDs))
	for _, refID := range refIDs {
		targetID, ok := mc.ref(refID)
		if !ok {
			*unresolved = append(*unresolved, UnresolvedReference{
				Field:    targetField,
				RefID:    refID,
				SourceID: doc.ID,
				Type:     EntityType(doc.Type),
			})
			continue
		}
		resolved = append(resolved, targetID)
	}

	if len(resolved) > 0 {
		fields[targetField] = resolved
	}
}
