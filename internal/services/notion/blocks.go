package notion

import (
	"strings"
	"unicode/utf16"

	"meetscribe/internal/summary"
)

const (
	// Notion caps rich text content at 2000 UTF-16 code units per item.
	maxRichTextLength = 2000
	// Notion caps a block's rich_text array at 100 items.
	maxRichTextItems = 100
)

type textContent struct {
	Content string `json:"content"`
}

type richText struct {
	Type string      `json:"type"`
	Text textContent `json:"text"`
}

type richTextBlock struct {
	RichText []richText `json:"rich_text"`
}

type block struct {
	Object    string         `json:"object"`
	Type      string         `json:"type"`
	Heading2  *richTextBlock `json:"heading_2,omitempty"`
	Paragraph *richTextBlock `json:"paragraph,omitempty"`
}

// chunkText splits value into pieces no longer than limit UTF-16 code units
// without cutting through a surrogate pair.
func chunkText(value string, limit int) []string {
	if value == "" {
		return nil
	}
	var (
		chunks  []string
		current strings.Builder
		units   int
	)
	for _, r := range value {
		width := utf16.RuneLen(r)
		if width < 0 {
			width = 1
		}
		if units+width > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			units = 0
		}
		current.WriteRune(r)
		units += width
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func richTextItems(value string) []richText {
	chunks := chunkText(value, maxRichTextLength)
	items := make([]richText, 0, len(chunks))
	for _, chunk := range chunks {
		items = append(items, richText{Type: "text", Text: textContent{Content: chunk}})
	}
	return items
}

func heading(text string) block {
	return block{Object: "block", Type: "heading_2", Heading2: &richTextBlock{RichText: richTextItems(text)}}
}

func paragraphs(value string) []block {
	items := richTextItems(value)
	if len(items) == 0 {
		return []block{{Object: "block", Type: "paragraph", Paragraph: &richTextBlock{RichText: []richText{}}}}
	}
	var blocks []block
	for start := 0; start < len(items); start += maxRichTextItems {
		end := min(start+maxRichTextItems, len(items))
		blocks = append(blocks, block{
			Object:    "block",
			Type:      "paragraph",
			Paragraph: &richTextBlock{RichText: items[start:end]},
		})
	}
	return blocks
}

// summaryBlocks renders every field as a heading followed by its full text.
func summaryBlocks(s summary.Summary) []block {
	var blocks []block
	for _, field := range s.Fields() {
		blocks = append(blocks, heading(field.Heading))
		blocks = append(blocks, paragraphs(field.Value)...)
	}
	return blocks
}
