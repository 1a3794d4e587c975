// Package webflow provides a client for the Webflow CMS Data API, the
// locale-partitioned target system of the migration.
package webflow

import "time"

// Locale identifies a CMS locale variant (a cmsLocaleId). Every write
// operation takes an explicit Locale so an unscoped write - which would
// silently land in the primary locale - is impossible to express.
type Locale string

// FieldData holds the field values of one locale variant of an item.
type FieldData map[string]any

// Item is a collection item in one locale variant.
type Item struct {
	// CMSLocaleID is the locale this variant belongs to.
	CMSLocaleID Locale `json:"cmsLocaleId,omitempty"`

	// CreatedOn is when the item was created.
	CreatedOn time.Time `json:"createdOn,omitempty"`

	// FieldData holds the item's field values.
	FieldData FieldData `json:"fieldData"`

	// ID is the item identifier, shared by all locale variants.
	ID string `json:"id"`

	// LastUpdated is when the item was last modified.
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// ItemUpdate describes a patch to a single item within a batch update.
type ItemUpdate struct {
	// FieldData holds the field values to write.
	FieldData FieldData `json:"fieldData"`

	// ID is the item identifier.
	ID string `json:"id"`
}

// Asset is an uploaded binary asset.
type Asset struct {
	// HostedURL is the CDN URL of the asset.
	HostedURL string `json:"hostedUrl"`

	// ID is the asset identifier.
	ID string `json:"id"`

	// OriginalFileName is the filename the asset was uploaded with.
	OriginalFileName string `json:"originalFileName"`
}

// ImageValue builds the field value for an image field from an uploaded
// asset.
func ImageValue(fileID string, url string) map[string]any {
	return map[string]any{
		"fileId": fileID,
		"url":    url,
	}
}
