package sandbox

import (
	"strings"
	"unicode"
)

// specialCase holds the unconditional one-to-many mappings from Unicode
// SpecialCasing.txt that str methods apply on top of the simple mappings.
type specialCase struct{ upper, title string }

var specialCases = map[rune]specialCase{
	'ß': {"SS", "Ss"},
	'ŉ': {"ʼN", "ʼN"},
	'ǰ': {"J̌", "J̌"},
	'ΐ': {"Ϊ́", "Ϊ́"},
	'ΰ': {"Ϋ́", "Ϋ́"},
	'և': {"ԵՒ", "Եւ"},
	'ﬀ': {"FF", "Ff"},
	'ﬁ': {"FI", "Fi"},
	'ﬂ': {"FL", "Fl"},
	'ﬃ': {"FFI", "Ffi"},
	'ﬄ': {"FFL", "Ffl"},
	'ﬅ': {"ST", "St"},
	'ﬆ': {"ST", "St"},
}

func writeUpper(b *strings.Builder, r rune) {
	if sc, ok := specialCases[r]; ok {
		b.WriteString(sc.upper)
		return
	}
	b.WriteRune(unicode.ToUpper(r))
}

func writeTitle(b *strings.Builder, r rune) {
	if sc, ok := specialCases[r]; ok {
		b.WriteString(sc.title)
		return
	}
	b.WriteRune(unicode.ToTitle(r))
}

func writeLower(b *strings.Builder, r rune) {
	if r == 'İ' {
		b.WriteString("i̇")
		return
	}
	b.WriteRune(unicode.ToLower(r))
}

func upperString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		writeUpper(&b, r)
	}
	return b.String()
}

func lowerString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		writeLower(&b, r)
	}
	return b.String()
}

// foldString lowercases the full uppercase form of specially cased runes,
// so 'ß' and 'ẞ' both fold to "ss".
func foldString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch sc, ok := specialCases[r]; {
		case ok:
			b.WriteString(lowerString(sc.upper))
		case r == 'ẞ':
			b.WriteString("ss")
		default:
			writeLower(&b, r)
		}
	}
	return b.String()
}
