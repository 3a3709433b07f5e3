package feed

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

var (
	linkPattern = regexp.MustCompile(`https?://[^\s\p{Zs}]+`)
	tagPattern  = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9-]*>`)
)

// Elements dropped together with their content.
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Noscript: true,
}

var voidElements = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

// Sanitizer turns feed markup into a plain-text post body for one destination.
// It holds only options, so one instance can be reused for every item.
type Sanitizer struct {
	allowed      map[string]bool
	wrapperTag   string
	paragraphs   bool
	maxLength    int
	skipMarker   string
	leadingImage bool
}

func NewSanitizer(opts SanitizeOptions) *Sanitizer {
	allowedTags := opts.AllowedTags
	if len(allowedTags) == 0 {
		allowedTags = []string{"p"}
	}

	allowed := make(map[string]bool, len(allowedTags))
	for _, tag := range allowedTags {
		allowed[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	wrapperTag := strings.ToLower(strings.TrimSpace(opts.WrapperTag))
	if wrapperTag == "" {
		wrapperTag = "div"
	}

	paragraphs := true
	if opts.ParagraphToNewline != nil {
		paragraphs = *opts.ParagraphToNewline
	}

	return &Sanitizer{
		allowed:      allowed,
		wrapperTag:   wrapperTag,
		paragraphs:   paragraphs,
		maxLength:    opts.MaxLength,
		skipMarker:   opts.SkipMarker,
		leadingImage: opts.LeadingImage,
	}
}

// Run returns the sanitized post, or nil and the reason the item must be skipped.
func (s *Sanitizer) Run(item Item) (*SanitizedPost, string) {
	body := item.Body()
	hasBody := strings.TrimSpace(body) != ""

	var imageURL string
	if item.Media.IsImage() {
		imageURL = item.Media.URL
	} else if s.leadingImage && hasBody {
		imageURL = leadingImageURL(body)
	}

	if !hasBody && imageURL == "" {
		return nil, "empty body and no image"
	}

	var text string
	if hasBody {
		text = s.Text(body)
		if s.skipMarker != "" && strings.Contains(text, s.skipMarker) {
			return nil, fmt.Sprintf("skip marker %s present", s.skipMarker)
		}
		text = truncate(text, s.maxLength)
	}

	if text == "" && imageURL == "" {
		return nil, "empty body after sanitizing"
	}

	segments, links := Tokenize(text)

	return &SanitizedPost{
		Text:     text,
		Segments: segments,
		Links:    links,
		ImageURL: imageURL,
	}, ""
}

// Text cleans raw markup down to decoded plain text. No length limit is applied.
func (s *Sanitizer) Text(raw string) string {
	markup := s.clean(raw)

	markup = strings.ReplaceAll(markup, "<"+s.wrapperTag+">", "")
	markup = strings.ReplaceAll(markup, "</"+s.wrapperTag+">", "")

	if s.paragraphs {
		markup = strings.ReplaceAll(markup, "<p>", "\n")
		markup = strings.ReplaceAll(markup, "</p>", "\n")
	}

	markup = tagPattern.ReplaceAllString(markup, "")
	markup = strings.TrimSpace(markup)

	return norm.NFC.String(html.UnescapeString(markup))
}

// clean re-emits allowed elements without attributes and keeps the text of everything else.
// Text is escaped, so the only tags left in the result are the ones clean wrote.
func (s *Sanitizer) clean(raw string) string {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(raw), parent)
	if err != nil {
		return html.EscapeString(raw)
	}

	var b strings.Builder
	for _, node := range nodes {
		s.render(&b, node)
	}
	return b.String()
}

func (s *Sanitizer) render(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
		if droppedElements[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br && s.paragraphs {
			b.WriteString("\n")
			return
		}

		keep := s.allowed[n.Data]
		if keep {
			b.WriteString("<" + n.Data + ">")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			s.render(b, c)
		}
		if keep && !voidElements[n.DataAtom] {
			b.WriteString("</" + n.Data + ">")
		}
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			s.render(b, c)
		}
	}
}

// Tokenize splits text into alternating plain and link segments that concatenate back to text.
func Tokenize(text string) ([]Segment, []LinkSpan) {
	var segments []Segment
	var links []LinkSpan

	last := 0
	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Text: text[last:loc[0]]})
		}
		url := text[loc[0]:loc[1]]
		segments = append(segments, Segment{Text: url, Link: true})
		links = append(links, LinkSpan{Start: loc[0], End: loc[1], URL: url})
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}

	return segments, links
}

func truncate(text string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	return string([]rune(text)[:maxLength])
}

func leadingImageURL(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img[src]").First().Attr("src")
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "http://") {
		return src
	}
	return ""
}
