// Package businesscard reads the fields the split engine groups on out of one
// business-card record and renders the record for output
//
// A record is parsed on its own, detached from the export, so it carries no
// namespace or declaration context. Lookups use the first matching descendant
// the way the export is laid out: entity/@countrycode, regdate text, name/@name
package businesscard

import (
	"strings"
	"unicode"

	perr "peppolsync/internal/platform/errors"

	"github.com/beevik/etree"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// FallbackPrefix starts every secondary key derived from the display name
	FallbackPrefix = "2000-"
	// UnknownKey is used when neither a date nor a usable name exists
	UnknownKey = FallbackPrefix + "UNKNOWN"

	dateLen     = 10
	fallbackLen = 5
	indentUnit  = "    "
)

var upper = cases.Upper(language.Und)

// Card is one parsed business-card record
type Card struct {
	root *etree.Element
}

// Parse parses a raw record fragment; surrounding whitespace is allowed
// Returns a RecordParse error when the fragment is not one well-formed element
func Parse(b []byte) (*Card, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.ValidateInput = true
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeRecordParse, "businesscard: malformed record")
	}
	root := doc.Root()
	if root == nil {
		return nil, perr.New(perr.ErrorCodeRecordParse, "businesscard: empty record")
	}
	for _, tok := range doc.Child {
		if cd, ok := tok.(*etree.CharData); ok && !cd.IsWhitespace() {
			return nil, perr.New(perr.ErrorCodeRecordParse, "businesscard: text outside the record element")
		}
	}
	return &Card{root: root}, nil
}

// CountryCode returns the countrycode attribute of the first entity element
func (c *Card) CountryCode() (string, bool) {
	e := c.first("entity")
	if e == nil {
		return "", false
	}
	a := e.SelectAttr("countrycode")
	if a == nil || a.Value == "" {
		return "", false
	}
	return a.Value, true
}

// RegDate returns the first ten characters of the trimmed regdate text
// ok is false when there is no regdate or it is shorter than a date
func (c *Card) RegDate() (string, bool) {
	e := c.first("regdate")
	if e == nil {
		return "", false
	}
	s := []rune(strings.TrimSpace(e.Text()))
	if len(s) < dateLen {
		return "", false
	}
	return string(s[:dateLen]), true
}

// DisplayName returns the name attribute of the first name element
func (c *Card) DisplayName() (string, bool) {
	e := c.first("name")
	if e == nil {
		return "", false
	}
	a := e.SelectAttr("name")
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// SecondaryKey returns the registration date or, without one, the name-derived fallback
func (c *Card) SecondaryKey() string {
	if d, ok := c.RegDate(); ok {
		return d
	}
	name, _ := c.DisplayName()
	return FallbackKey(name)
}

// FallbackKey builds "2000-" plus the first five letters or digits of name, upper-cased
// "Ajax Corp!!" -> "2000-AJAXC"; no letters or digits -> "2000-UNKNOWN"
func FallbackKey(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == fallbackLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			n++
		}
	}
	if n == 0 {
		return UnknownKey
	}
	return FallbackPrefix + upper.String(b.String())
}

// Pretty renders the record indented two spaces per level, with every line shifted
// right by four spaces so it nests under the container root
func (c *Card) Pretty() (string, error) {
	out := etree.NewDocumentWithRoot(c.root.Copy())
	out.Indent(2)
	s, err := out.WriteToString()
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeRecordParse, "businesscard: render record")
	}
	s = strings.TrimSpace(s)
	return indentUnit + strings.ReplaceAll(s, "\n", "\n"+indentUnit), nil
}

// first returns the first descendant named tag in document order (pre-order depth first)
func (c *Card) first(tag string) *etree.Element {
	return firstIn(c.root, tag)
}

func firstIn(e *etree.Element, tag string) *etree.Element {
	for _, ch := range e.ChildElements() {
		if ch.Tag == tag {
			return ch
		}
		if m := firstIn(ch, tag); m != nil {
			return m
		}
	}
	return nil
}
