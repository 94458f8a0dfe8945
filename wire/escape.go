// Package wire implements the line-framed wire codec used between the
// coordinator and its stage-worker subprocesses: escaping of leaf values,
// and schema-guided serialization/parsing of nested delimiter frames.
package wire

import "strings"

// Reserved delimiters, one per nesting depth, and the escape sentinel.
const (
	depth0Delim = ':'
	depth1Delim = '/'
	depth2Delim = '%'
	escapeRune  = '?'
)

const (
	tokenColon    = "?PNcolon?"
	tokenSlash    = "?PNslash?"
	tokenPercent  = "?PNpercent?"
	tokenQuestion = "?PNquestion?"
)

// Escape makes the three frame delimiters and the escape sentinel itself
// safely embeddable in a leaf value. Every occurrence of ':', '/', '%' and
// '?' is replaced by its token, left to right, so relative order of the
// original characters is preserved by construction.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case depth0Delim:
			b.WriteString(tokenColon)
		case depth1Delim:
			b.WriteString(tokenSlash)
		case depth2Delim:
			b.WriteString(tokenPercent)
		case escapeRune:
			b.WriteString(tokenQuestion)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape is the exact inverse of Escape: every recognized token is
// replaced by the raw character it stands for. Any bare '?' that does not
// begin one of the four recognized tokens is left untouched, since Escape
// never produces one.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != escapeRune {
			b.WriteByte(s[i])
			i++
			continue
		}
		switch {
		case strings.HasPrefix(s[i:], tokenColon):
			b.WriteByte(':')
			i += len(tokenColon)
		case strings.HasPrefix(s[i:], tokenSlash):
			b.WriteByte('/')
			i += len(tokenSlash)
		case strings.HasPrefix(s[i:], tokenPercent):
			b.WriteByte('%')
			i += len(tokenPercent)
		case strings.HasPrefix(s[i:], tokenQuestion):
			b.WriteByte('?')
			i += len(tokenQuestion)
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// UnescapeURL reverses only the three delimiter tokens, leaving
// "?PNquestion?" untouched. This mirrors the upload worker's contract
// (spec §4.6): the done frame's URL payload is structurally escaped and only
// the frame delimiters are reversed, so a '?' in the URL comes back as the
// "?PNquestion?" token rather than as a literal '?'.
func UnescapeURL(s string) string {
	r := strings.ReplaceAll(s, tokenSlash, "/")
	r = strings.ReplaceAll(r, tokenColon, ":")
	r = strings.ReplaceAll(r, tokenPercent, "%")
	return r
}
