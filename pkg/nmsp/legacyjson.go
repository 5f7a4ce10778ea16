package nmsp

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

const hexDigits = "0123456789abcdef"

// writeLegacyString writes s as a JSON string literal the way the firmware's
// original server serialised it: ASCII only, non-ASCII escaped as \uXXXX
// (surrogate pairs above the BMP), no HTML escaping.
func writeLegacyString(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r < 0x20 || (r > 0x7e && r <= 0xffff):
			writeUnicodeEscape(b, r)
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			writeUnicodeEscape(b, hi)
			writeUnicodeEscape(b, lo)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

func writeUnicodeEscape(b *bytes.Buffer, r rune) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[(r>>12)&0xf])
	b.WriteByte(hexDigits[(r>>8)&0xf])
	b.WriteByte(hexDigits[(r>>4)&0xf])
	b.WriteByte(hexDigits[r&0xf])
}

// formatConfidence renders c with the fewest digits that identify the float32
// value, in the notation of the original server: fixed point with at least one
// fractional digit, exponent form below 1e-4.
func formatConfidence(c float32) string {
	v := float64(c)
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 32)
	}
	s := strconv.FormatFloat(v, 'f', -1, 32)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
