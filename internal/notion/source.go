package notion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/softbatch/loaf/internal/knowledge"
	"github.com/softbatch/loaf/internal/log"
)

// Source adapts the Notion client into a document source for the sync
// listener. When PageIDs is empty it tracks every page the integration
// can see.
type Source struct {
	client  *Client
	pageIDs []string
	logger  log.Logger
}

// NewSource creates a document source over specific pages, or over all
// accessible pages when pageIDs is empty.
func NewSource(client *Client, pageIDs []string, logger log.Logger) *Source {
	return &Source{
		client:  client,
		pageIDs: pageIDs,
		logger:  logger,
	}
}

// ListDocuments returns the tracked pages with their revision markers
// but without content. The marker is the page's last edited time, so
// any edit in Notion changes it. Content comes from FetchContent, one
// page at a time, so a broken page only fails its own fetch.
func (s *Source) ListDocuments(ctx context.Context) ([]knowledge.SourceDocument, error) {
	pages, err := s.listPages(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]knowledge.SourceDocument, 0, len(pages))
	for _, page := range pages {
		docs = append(docs, knowledge.SourceDocument{
			ID:     page.ID,
			Title:  PageTitle(&page),
			Marker: page.LastEditedTime.UTC().Format(time.RFC3339),
		})
	}

	s.logger.Debug("listed source documents", "count", len(docs))

	return docs, nil
}

// FetchContent renders one page's block tree as plain text.
func (s *Source) FetchContent(ctx context.Context, sourceID string) (string, error) {
	blocks, err := s.client.GetBlockChildren(ctx, sourceID)
	if err != nil {
		return "", fmt.Errorf("fetching content of page %s: %w", sourceID, err)
	}
	return ExtractText(blocks), nil
}

func (s *Source) listPages(ctx context.Context) ([]Page, error) {
	if len(s.pageIDs) == 0 {
		return s.client.Search(ctx, "")
	}

	pages := make([]Page, 0, len(s.pageIDs))
	for _, id := range s.pageIDs {
		page, err := s.client.GetPage(ctx, id)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	return pages, nil
}

// ExtractText renders blocks as plain text. Headings, lists, quotes,
// code and to-dos keep a light markdown flavor; unsupported block
// types are skipped.
func ExtractText(blocks []Block) string {
	var b strings.Builder

	for _, block := range blocks {
		var text string

		switch block.Type {
		case "paragraph":
			if block.Paragraph != nil {
				text = richText(block.Paragraph.RichText)
			}
		case "heading_1":
			if block.Heading1 != nil {
				text = "# " + richText(block.Heading1.RichText)
			}
		case "heading_2":
			if block.Heading2 != nil {
				text = "## " + richText(block.Heading2.RichText)
			}
		case "heading_3":
			if block.Heading3 != nil {
				text = "### " + richText(block.Heading3.RichText)
			}
		case "bulleted_list_item":
			if block.BulletedListItem != nil {
				text = "- " + richText(block.BulletedListItem.RichText)
			}
		case "numbered_list_item":
			if block.NumberedListItem != nil {
				text = "- " + richText(block.NumberedListItem.RichText)
			}
		case "code":
			if block.Code != nil {
				text = fmt.Sprintf("```%s\n%s\n```", block.Code.Language, richText(block.Code.RichText))
			}
		case "quote":
			if block.Quote != nil {
				text = "> " + richText(block.Quote.RichText)
			}
		case "callout":
			if block.Callout != nil {
				text = richText(block.Callout.RichText)
			}
		case "to_do":
			if block.ToDo != nil {
				box := "[ ]"
				if block.ToDo.Checked {
					box = "[x]"
				}
				text = box + " " + richText(block.ToDo.RichText)
			}
		default:
			continue
		}

		if text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(b.String())
}

// PageTitle extracts the title property of a page, falling back to
// "Untitled" when the page has none.
func PageTitle(page *Page) string {
	for _, prop := range page.Properties {
		if prop.Type == "title" && len(prop.Title) > 0 {
			return richText(prop.Title)
		}
	}
	return "Untitled"
}

func richText(spans []RichText) string {
	var parts []string
	for _, span := range spans {
		parts = append(parts, span.PlainText)
	}
	return strings.Join(parts, "")
}
