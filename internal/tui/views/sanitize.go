package views

import (
	"strings"
	"unicode"

	"github.com/rivo/tview"
)

// cleanText prepares text typed by a contact for a dynamic-color view.
// Terminal escape sequences and control characters are dropped, emoji
// modifiers that tcell cannot size are removed and style tags are escaped.
func cleanText(s string) string {
	return tview.Escape(stripRunes(s, false))
}

// cleanLine is cleanText for single-line cells: line breaks become spaces.
func cleanLine(s string) string {
	return tview.Escape(stripRunes(s, true))
}

func stripRunes(s string, oneLine bool) string {
	var b strings.Builder
	b.Grow(len(s))
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == 0x1b:
			i = skipEscape(rs, i)
		case r == '\n' || r == '\t':
			if oneLine {
				r = ' '
			}
			b.WriteRune(r)
		case r == '\r', unicode.IsControl(r), unsizedRune(r):
		default:
			b.WriteRune(r)
		}
	}
	if oneLine {
		return strings.Join(strings.Fields(b.String()), " ")
	}
	return b.String()
}

// skipEscape returns the index of the last rune of the escape sequence that
// starts at i. CSI sequences run to their final byte, OSC sequences to BEL
// or ST, anything else is a two-rune escape.
func skipEscape(rs []rune, i int) int {
	if i+1 >= len(rs) {
		return i
	}
	switch rs[i+1] {
	case '[':
		for j := i + 2; j < len(rs); j++ {
			if rs[j] >= 0x40 && rs[j] <= 0x7e {
				return j
			}
		}
		return len(rs) - 1
	case ']':
		for j := i + 2; j < len(rs); j++ {
			if rs[j] == 0x07 {
				return j
			}
			if rs[j] == 0x1b && j+1 < len(rs) && rs[j+1] == '\\' {
				return j + 1
			}
		}
		return len(rs) - 1
	default:
		return i + 1
	}
}

// unsizedRune reports runes that make tcell miscount emoji width: skin tone
// modifiers, zero width joiners and variation selectors.
func unsizedRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
