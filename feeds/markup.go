package feeds

import (
	"iter"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// MaxItemsPerFeed caps how many items a single feed can contribute to a scan.
const MaxItemsPerFeed = 100

// RawItem is one item block as found in the feed, before any cleanup beyond
// tag stripping and entity decoding.
type RawItem struct {
	Title       string
	Description string
	Link        string
	Published   string
	GUID        string
}

// field tags recognized inside an item block, by lowercased tag name
var _FIELD_TAGS = map[string]string{
	"title":           _TITLE,
	"description":     _DESCRIPTION,
	"summary":         _DESCRIPTION,
	"content":         _DESCRIPTION,
	"content:encoded": _DESCRIPTION,
	"link":            _LINK,
	"pubdate":         _PUBLISHED,
	"published":       _PUBLISHED,
	"updated":         _PUBLISHED,
	"dc:date":         _PUBLISHED,
	"guid":            _GUID,
	"id":              _GUID,
}

const (
	_TITLE       = "title"
	_DESCRIPTION = "description"
	_LINK        = "link"
	_PUBLISHED   = "published"
	_GUID        = "guid"
)

var (
	_tag_expr        = regexp.MustCompile(`<[^>]*>`)
	_whitespace_expr = regexp.MustCompile(`\s+`)
)

type scanState int

const (
	outsideBlock scanState = iota
	inBlock
	inField
)

// itemScanner is the token state machine. It only ever moves
// outsideBlock -> inBlock -> inField -> inBlock -> outsideBlock, and a block
// boundary seen in any state closes whatever is open first.
type itemScanner struct {
	state    scanState
	current  RawItem
	fieldTag string
	field    string
	text     strings.Builder
}

func (s *itemScanner) openBlock() {
	s.current = RawItem{}
	s.state = inBlock
}

func (s *itemScanner) openField(tag, field string) {
	s.fieldTag, s.field = tag, field
	s.text.Reset()
	s.state = inField
}

func (s *itemScanner) closeField() {
	if s.state != inField {
		return
	}
	value := s.text.String()
	switch s.field {
	case _TITLE:
		setIfEmpty(&s.current.Title, value)
	case _DESCRIPTION:
		setIfEmpty(&s.current.Description, value)
	case _LINK:
		setIfEmpty(&s.current.Link, strings.TrimSpace(value))
	case _PUBLISHED:
		setIfEmpty(&s.current.Published, strings.TrimSpace(value))
	case _GUID:
		setIfEmpty(&s.current.GUID, strings.TrimSpace(value))
	}
	s.fieldTag, s.field = "", ""
	s.text.Reset()
	s.state = inBlock
}

// closeBlock returns the finished item and whether it is usable.
func (s *itemScanner) closeBlock() (RawItem, bool) {
	s.closeField()
	s.state = outsideBlock
	item := s.current
	item.Title = CleanText(item.Title)
	item.Description = CleanText(item.Description)
	if item.Link == "" {
		item.Link = item.GUID
	}
	return item, item.Title != ""
}

// Items walks the markup and yields item records. The sequence can be ranged
// over any number of times, each pass re-tokenizes from the start. Markup that
// is not a feed at all just yields nothing.
func Items(markup string) iter.Seq[RawItem] {
	return func(yield func(RawItem) bool) {
		z := html.NewTokenizer(strings.NewReader(markup))
		z.AllowCDATA(true)
		scanner := &itemScanner{}
		count := 0

		emit := func() bool {
			item, ok := scanner.closeBlock()
			if !ok {
				return true
			}
			count++
			return yield(item) && count < MaxItemsPerFeed
		}

		for {
			tt := z.Next()
			switch tt {
			case html.ErrorToken:
				// EOF or garbage: a half open block still counts
				if scanner.state != outsideBlock {
					emit()
				}
				return

			case html.StartTagToken, html.SelfClosingTagToken:
				// <title> is not rcdata in a feed, an unclosed one must not swallow the rest
				z.NextIsNotRawText()
				name, has_attr := z.TagName()
				tag := string(name)
				href := ""
				for has_attr {
					var key, val []byte
					key, val, has_attr = z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
				switch {
				case isBlockTag(tag):
					if scanner.state != outsideBlock && !emit() {
						return
					}
					if tt == html.StartTagToken {
						scanner.openBlock()
					}
				case scanner.state == inBlock || (scanner.state == inField && scanner.field != _DESCRIPTION):
					// an unclosed short field is closed by the next field tag
					field, ok := _FIELD_TAGS[tag]
					if !ok {
						continue
					}
					scanner.closeField()
					if field == _LINK && href != "" {
						setIfEmpty(&scanner.current.Link, strings.TrimSpace(href))
					}
					if tt == html.StartTagToken {
						scanner.openField(tag, field)
					}
				}
				// tags nested inside a field are dropped, which strips inline markup

			case html.EndTagToken:
				name, _ := z.TagName()
				tag := string(name)
				switch {
				case isBlockTag(tag):
					if scanner.state != outsideBlock && !emit() {
						return
					}
				case scanner.state == inField && tag == scanner.fieldTag:
					scanner.closeField()
				}

			case html.TextToken:
				if scanner.state == inField {
					scanner.text.Write(z.Text())
				}
			}
		}
	}
}

// ExtractItems collects Items into a slice.
func ExtractItems(markup string) []RawItem {
	items := make([]RawItem, 0, 16)
	for item := range Items(markup) {
		items = append(items, item)
	}
	return items
}

// CleanText removes CDATA wrappers and markup tags, decodes entities and
// collapses whitespace.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "<![CDATA[", "")
	text = strings.ReplaceAll(text, "]]>", "")
	text = _tag_expr.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = _whitespace_expr.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func isBlockTag(tag string) bool {
	return tag == "item" || tag == "entry"
}

func setIfEmpty(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = value
	}
}
