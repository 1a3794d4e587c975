// Package sanity provides a read-only client for the Sanity Content Lake,
// the source system of record for the catalog.
package sanity

import "encoding/json"

// LocaleText holds the two language variants of a bilingual field.
type LocaleText struct {
	// DE is the German (secondary locale) text.
	DE string

	// EN is the English (primary locale) text.
	EN string
}

// Document is a source document. Field payloads are decoded once through the
// typed accessors; missing or differently-shaped fields report ok=false
// instead of being re-checked ad hoc by callers.
type Document struct {
	// ID is the Sanity document ID.
	ID string

	// Type is the Sanity document type.
	Type string

	fields map[string]json.RawMessage
}

// UnmarshalJSON decodes a raw Sanity document, capturing _id and _type and
// retaining the remaining fields for typed access.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.fields = make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		switch key {
		case "_id":
			if err := json.Unmarshal(value, &d.ID); err != nil {
				return err
			}
		case "_type":
			if err := json.Unmarshal(value, &d.Type); err != nil {
				return err
			}
		default:
			d.fields[key] = value
		}
	}

	return nil
}

// String returns a plain string field.
func (d *Document) String(field string) (string, bool) {
	raw, ok := d.fields[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Int returns an integer field.
func (d *Document) Int(field string) (int, bool) {
	raw, ok := d.fields[field]
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// localized mirrors the bilingual object shape used throughout the dataset.
type localized struct {
	DE json.RawMessage `json:"de"`
	EN json.RawMessage `json:"en"`
}

// Localized returns a bilingual string field. A plain string is treated as
// English-only content.
func (d *Document) Localized(field string) (LocaleText, bool) {
	raw, ok := d.fields[field]
	if !ok {
		return LocaleText{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return LocaleText{EN: s}, true
	}

	var loc localized
	if err := json.Unmarshal(raw, &loc); err != nil {
		return LocaleText{}, false
	}

	var text LocaleText
	if loc.EN != nil {
		_ = json.Unmarshal(loc.EN, &text.EN)
	}
	if loc.DE != nil {
		_ = json.Unmarshal(loc.DE, &text.DE)
	}
	return text, true
}

// Slug returns a slug field, accepting both the {current: "..."} object shape
// and a plain string.
func (d *Document) Slug(field string) (string, bool) {
	raw, ok := d.fields[field]
	if !ok {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	var obj struct {
		Current string `json:"current"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	return obj.Current, obj.Current != ""
}

// reference mirrors the Sanity reference shape.
type reference struct {
	Ref string `json:"_ref"`
}

// Ref returns the document ID a single-valued reference field points at.
func (d *Document) Ref(field string) (string, bool) {
	raw, ok := d.fields[field]
	if !ok {
		return "", false
	}
	var ref reference
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", false
	}
	return ref.Ref, ref.Ref != ""
}

// Refs returns the document IDs a multi-valued reference field points at.
// Entries that do not carry a reference are dropped.
func (d *Document) Refs(field string) []string {
	raw, ok := d.fields[field]
	if !ok {
		return nil
	}
	var refs []reference
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil
	}
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.Ref != "" {
			ids = append(ids, r.Ref)
		}
	}
	return ids
}

// image mirrors the Sanity image shape.
type image struct {
	Asset reference `json:"asset"`
}

// ImageRef returns the asset ID of a single image field.
func (d *Document) ImageRef(field string) (string, bool) {
	raw, ok := d.fields[field]
	if !ok {
		return "", false
	}
	var img image
	if err := json.Unmarshal(raw, &img); err != nil {
		return "", false
	}
	return img.Asset.Ref, img.Asset.Ref != ""
}

// ImageRefs returns the asset IDs of an image array field.
func (d *Document) ImageRefs(field string) []string {
	raw, ok := d.fields[field]
	if !ok {
		return nil
	}
	var imgs []image
	if err := json.Unmarshal(raw, &imgs); err != nil {
		return nil
	}
	ids := make([]string, 0, len(imgs))
	for _, img := range imgs {
		if img.Asset.Ref != "" {
			ids = append(ids, img.Asset.Ref)
		}
	}
	return ids
}

// BlockText returns a bilingual portable-text field flattened to plain text.
// A bare block array is treated as English-only content.
func (d *Document) BlockText(field string) (LocaleText, bool) {
	raw, ok := d.fields[field]
	if !ok {
		return LocaleText{}, false
	}

	var blocks []Block
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return LocaleText{EN: FlattenBlocks(blocks)}, true
	}

	var loc localized
	if err := json.Unmarshal(raw, &loc); err != nil {
		return LocaleText{}, false
	}

	var text LocaleText
	if loc.EN != nil {
		var en []Block
		if err := json.Unmarshal(loc.EN, &en); err == nil {
			text.EN = FlattenBlocks(en)
		}
	}
	if loc.DE != nil {
		var de []Block
		if err := json.Unmarshal(loc.DE, &de); err == nil {
			text.DE = FlattenBlocks(de)
		}
	}
	return text, true
}

// AssetDocument describes a binary asset stored in the Content Lake.
type AssetDocument struct {
	// ID is the asset document ID.
	ID string `json:"_id"`

	// MimeType is the asset content type.
	MimeType string `json:"mimeType"`

	// OriginalFilename is the filename the asset was uploaded with.
	OriginalFilename string `json:"originalFilename"`

	// URL is the CDN URL of the binary.
	URL string `json:"url"`
}
