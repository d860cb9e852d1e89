package contracts

import (
	"regexp"
	"strings"
)

// Heading is one entry of a document outline.
type Heading struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// headingSpace is the whitespace set of browser regular expressions, which
// is wider than RE2's \s.
const headingSpace = `\t\n\v\f\r \x{00A0}\x{1680}\x{2000}-\x{200A}\x{2028}\x{2029}\x{202F}\x{205F}\x{3000}\x{FEFF}`

var (
	headingIDStrip      = regexp.MustCompile(`[^\w` + headingSpace + `-]`)
	headingIDWhitespace = regexp.MustCompile(`[` + headingSpace + `]+`)
)

// HeadingID derives the anchor id of a heading from its plain text.
// Identical texts produce identical ids; collisions are left to the caller.
func HeadingID(text string) string {
	id := strings.ToLower(text)
	id = headingIDStrip.ReplaceAllString(id, "")
	return headingIDWhitespace.ReplaceAllString(id, "-")
}
