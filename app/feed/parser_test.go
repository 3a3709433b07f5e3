package feed

import (
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <language>en-us</language>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>&lt;p&gt;Second&lt;/p&gt;</description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description>Test Item 1 Description</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	metadata, items, err := parser.Run([]byte(rssData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", metadata.Title)
	}
	if metadata.Language != "en-us" {
		t.Errorf("Expected language 'en-us', got: %s", metadata.Language)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(items))
	}

	// Feed order is preserved, newest first
	if items[0].GUID != "item-2" || items[1].GUID != "item-1" {
		t.Errorf("Expected feed order [item-2 item-1], got [%s %s]", items[0].GUID, items[1].GUID)
	}
	if items[0].Body() != "<p>Second</p>" {
		t.Errorf("Expected decoded markup body, got: %q", items[0].Body())
	}
	if items[1].Link != "https://example.com/item1" {
		t.Errorf("Expected link 'https://example.com/item1', got: %s", items[1].Link)
	}
	if items[1].PublishedAt.IsZero() {
		t.Error("Expected published date to be parsed")
	}
	if items[0].Media != nil {
		t.Errorf("Expected no media, got: %+v", items[0].Media)
	}
}

func TestParseAtomUsesContentWhenSummaryMissing(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Test Entry</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <content type="html">Test content</content>
  </entry>
</feed>`

	parser := NewParser()
	_, items, err := parser.Run([]byte(atomData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}
	if items[0].GUID != "urn:uuid:entry-1" {
		t.Errorf("Expected GUID 'urn:uuid:entry-1', got: %s", items[0].GUID)
	}
	if items[0].Body() != "Test content" {
		t.Errorf("Expected body 'Test content', got: %q", items[0].Body())
	}
	if items[0].PublishedAt.IsZero() {
		t.Error("Expected updated date to be used as published date")
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	_, _, err := parser.Run([]byte("this is not a feed"))
	if err == nil {
		t.Error("Expected error for invalid feed data")
	}
}

func TestParseGUIDFallsBackToLink(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>No GUID</title>
      <link>https://example.com/no-guid</link>
      <description>Body</description>
    </item>
  </channel>
</rss>`

	_, items, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if items[0].GUID != "https://example.com/no-guid" {
		t.Errorf("Expected GUID to fall back to link, got: %s", items[0].GUID)
	}
}

func TestParseRSSWithMediaContent(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Photo</title>
      <link>https://example.com/photo</link>
      <guid>photo-1</guid>
      <description>Look at this</description>
      <media:content url="https://example.com/clip.mp4" type="video/mp4"/>
      <media:content url="https://example.com/photo.jpg" type="image/jpeg"/>
    </item>
  </channel>
</rss>`

	_, items, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if items[0].Media == nil {
		t.Fatal("Expected media to be extracted")
	}
	if items[0].Media.URL != "https://example.com/photo.jpg" {
		t.Errorf("Expected first image media URL, got: %s", items[0].Media.URL)
	}
	if items[0].Media.MIMEType != "image/jpeg" {
		t.Errorf("Expected MIME type 'image/jpeg', got: %s", items[0].Media.MIMEType)
	}
}

func TestParseRSSWithImageEnclosure(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Podcast</title>
      <guid>enc-1</guid>
      <description>Episode</description>
      <enclosure url="https://example.com/episode.mp3" length="1024" type="audio/mpeg"/>
    </item>
    <item>
      <title>Picture</title>
      <guid>enc-2</guid>
      <description>Picture</description>
      <enclosure url="https://example.com/pic.png" length="2048" type="image/png"/>
    </item>
  </channel>
</rss>`

	_, items, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if items[0].Media != nil {
		t.Errorf("Expected audio enclosure to be ignored, got: %+v", items[0].Media)
	}
	if items[1].Media == nil || items[1].Media.URL != "https://example.com/pic.png" {
		t.Errorf("Expected image enclosure to be used, got: %+v", items[1].Media)
	}
}
