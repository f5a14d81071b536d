package notion

import (
	"encoding/json"
	"time"
)

// Page is a Notion page object, reduced to the fields the sync needs.
type Page struct {
	Object         string              `json:"object"`
	ID             string              `json:"id"`
	CreatedTime    time.Time           `json:"created_time"`
	LastEditedTime time.Time           `json:"last_edited_time"`
	URL            string              `json:"url"`
	Properties     map[string]Property `json:"properties"`
}

// Property is a page property, simplified for title extraction.
type Property struct {
	Type  string     `json:"type"`
	Title []RichText `json:"title,omitempty"`
}

// Block is a Notion block object. Type-specific content lives in the
// matching pointer field; only text-bearing types are decoded.
type Block struct {
	Object      string `json:"object"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`

	Paragraph        *TextBlock `json:"paragraph,omitempty"`
	Heading1         *TextBlock `json:"heading_1,omitempty"`
	Heading2         *TextBlock `json:"heading_2,omitempty"`
	Heading3         *TextBlock `json:"heading_3,omitempty"`
	BulletedListItem *TextBlock `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextBlock `json:"numbered_list_item,omitempty"`
	Code             *CodeBlock `json:"code,omitempty"`
	Quote            *TextBlock `json:"quote,omitempty"`
	Callout          *TextBlock `json:"callout,omitempty"`
	ToDo             *ToDoBlock `json:"to_do,omitempty"`
}

// TextBlock covers blocks whose content is plain rich text.
type TextBlock struct {
	RichText []RichText `json:"rich_text"`
}

// CodeBlock is a code block with its language tag.
type CodeBlock struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language"`
}

// ToDoBlock is a to-do block with its checked state.
type ToDoBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

// RichText is a rich text span. PlainText carries the rendered text.
type RichText struct {
	Type      string `json:"type"`
	PlainText string `json:"plain_text"`
}

// SearchRequest is the body for the search endpoint.
type SearchRequest struct {
	Query       string        `json:"query,omitempty"`
	Filter      *SearchFilter `json:"filter,omitempty"`
	StartCursor string        `json:"start_cursor,omitempty"`
	PageSize    int           `json:"page_size,omitempty"`
}

// SearchFilter restricts search results by object type.
type SearchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// SearchResponse is the paginated search result. Results is a union of
// pages and databases, so entries are decoded individually.
type SearchResponse struct {
	Object     string            `json:"object"`
	Results    []json.RawMessage `json:"results"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}

// BlockChildrenResponse is the paginated block children result.
type BlockChildrenResponse struct {
	Object     string  `json:"object"`
	Results    []Block `json:"results"`
	NextCursor string  `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}
