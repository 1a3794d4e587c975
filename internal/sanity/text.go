package sanity

import "strings"

// Block is a portable-text block. Only span children contribute to the
// plain-text projection; inline objects and unknown block types are skipped.
type Block struct {
	// Children are the inline nodes of the block.
	Children []Span `json:"children"`

	// Type is the block type, "block" for regular text.
	Type string `json:"_type"`
}

// Span is an inline text node within a block.
type Span struct {
	// Text is the span text.
	Text string `json:"text"`

	// Type is the span type, "span" for plain text.
	Type string `json:"_type"`
}

// FlattenBlocks projects portable-text blocks to plain text. The projection
// is deterministic: span texts are concatenated per block in document order
// and blocks are joined with blank lines, so re-running it on unchanged
// content yields byte-identical output.
func FlattenBlocks(blocks []Block) string {
	paragraphs := make([]string, 0, len(blocks))

	for _, block := range blocks {
		if block.Type != "block" {
			continue
		}
		var sb strings.Builder
		for _, child := range block.Children {
			if child.Type != "" && child.Type != "span" {
				continue
			}
			sb.WriteString(child.Text)
		}
		paragraph := strings.TrimSpace(sb.String())
		if paragraph == "" {
			continue
		}
		paragraphs = append(paragraphs, paragraph)
	}

	return strings.Join(paragraphs, "\n\n")
}
