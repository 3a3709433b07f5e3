package feed

import (
	"cmp"
	"strings"
	"time"
)

// Feed processing types

type Metadata struct {
	Title    string
	Link     string
	Language string
}

type Media struct {
	URL      string
	MIMEType string
}

func (m *Media) IsImage() bool {
	return m != nil && m.URL != "" && strings.HasPrefix(strings.ToLower(m.MIMEType), "image/")
}

// Item is one feed entry. GUID is the ledger key and must stay stable across runs.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt time.Time
	Media       *Media
}

// Body returns the markup used as the post source.
func (i Item) Body() string {
	return cmp.Or(i.Description, i.Content)
}

type Image struct {
	URL      string
	MIMEType string
	Data     []byte
}

// LinkSpan is a URL inside SanitizedPost.Text, addressed by UTF-8 byte offsets.
type LinkSpan struct {
	Start int
	End   int
	URL   string
}

type Segment struct {
	Text string
	Link bool
}

type SanitizedPost struct {
	Text     string
	Segments []Segment
	Links    []LinkSpan
	ImageURL string
	Image    *Image
}

// Configuration types

const (
	DestinationTypeThreads = "threads"
	DestinationTypeTwitter = "twitter"
	DestinationTypeBluesky = "bluesky"
	DestinationTypePlurk   = "plurk"
)

type DestinationConfig struct {
	Name        string            // Derived from filename (without .yml extension)
	Type        string            `yaml:"type"`
	Enabled     bool              `yaml:"enabled"`
	BaseURL     string            `yaml:"base_url"`   // API root override, e.g. a self-hosted PDS
	UploadURL   string            `yaml:"upload_url"` // media upload root, twitter only
	Timeout     int               `yaml:"timeout"`    // seconds
	Sanitize    SanitizeOptions   `yaml:"sanitize"`
	Poll        PollSettings      `yaml:"poll"`
	Pacing      PacingSettings    `yaml:"pacing"`
	Reply       ReplySettings     `yaml:"reply"`
	Credentials map[string]string `yaml:"credentials"`
}

type SanitizeOptions struct {
	AllowedTags        []string `yaml:"allowed_tags"`
	WrapperTag         string   `yaml:"wrapper_tag"`
	ParagraphToNewline *bool    `yaml:"paragraph_to_newline"`
	MaxLength          int      `yaml:"max_length"` // characters, 0 = unlimited
	SkipMarker         string   `yaml:"skip_marker"`
	LeadingImage       bool     `yaml:"leading_image"`
}

type PollSettings struct {
	Interval    int `yaml:"interval"` // seconds
	MaxAttempts int `yaml:"max_attempts"`
}

type PacingSettings struct {
	AfterMedia   int `yaml:"after_media"`   // seconds
	BeforeReply  int `yaml:"before_reply"`  // seconds
	BetweenItems int `yaml:"between_items"` // seconds
}

type ReplySettings struct {
	Enabled *bool  `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

func (r ReplySettings) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

func (c *DestinationConfig) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c *DestinationConfig) Credential(key string) string {
	return strings.TrimSpace(c.Credentials[key])
}
