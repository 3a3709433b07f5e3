package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses feed data. Items keep the feed's own order, which is usually newest first.
func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:    parsed.Title,
		Link:     parsed.Link,
		Language: parsed.Language,
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		items = append(items, p.normalizeItem(item))
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        strings.TrimSpace(cmp.Or(item.GUID, item.Link)),
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Content:     item.Content,
		Media:       p.extractMedia(item),
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		normalized.PublishedAt = *item.UpdatedParsed
	}

	return normalized
}

// extractMedia picks the first image from media:content (including media:group),
// then falls back to image enclosures.
func (p *Parser) extractMedia(item *gofeed.Item) *Media {
	if media, ok := item.Extensions["media"]; ok {
		if found := firstImage(media["content"]); found != nil {
			return found
		}
		for _, group := range media["group"] {
			if found := firstImage(group.Children["content"]); found != nil {
				return found
			}
		}
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		candidate := &Media{URL: enclosure.URL, MIMEType: enclosure.Type}
		if candidate.IsImage() {
			return candidate
		}
	}

	return nil
}

func firstImage(contents []ext.Extension) *Media {
	for _, content := range contents {
		candidate := &Media{URL: content.Attrs["url"], MIMEType: content.Attrs["type"]}
		if candidate.IsImage() {
			return candidate
		}
	}
	return nil
}
