package nmsp

import (
	"bytes"
	"unicode"
	"unicode/utf8"
)

const (
	// ResponseBoundary is the boundary of every reply. Firmware matches on this
	// literal, so it is never derived from the request.
	ResponseBoundary = "--Nuance_NMSP_vutc5w1XobDdefsYG3wq"

	// NoSpaceBefore is appended to the first word of a result. The firmware
	// reads it as "do not insert a space before this word".
	NoSpaceBefore = `\*no-space-before`

	// PartContentType is the header of the single reply part, spelled the
	// way the firmware has always received it.
	PartContentType = "application/JSON; charset=utf-8"

	// RetryPrompt is the text shown by the firmware when nothing was recognised.
	RetryPrompt = "Sorry, speech not recognized. Please try again."
)

// Part names understood by the firmware.
const (
	PartQueryResult = "QueryResult"
	PartQueryRetry  = "QueryRetry"
)

// Word is a single recognised token and the confidence reported for it.
type Word struct {
	Word       string
	Confidence float32
}

// ResponseContentType is the Content-Type header value of every reply.
func ResponseContentType() string {
	return "multipart/form-data; boundary=" + ResponseBoundary
}

// EncodeResult builds the complete reply body for words. A non-empty list
// becomes a QueryResult part; an empty list becomes the fixed QueryRetry
// prompt. words is not modified.
func EncodeResult(words []Word) []byte {
	if len(words) == 0 {
		return envelope(PartQueryRetry, retryJSON())
	}
	shaped := make([]Word, len(words))
	copy(shaped, words)
	shaped[0].Word = capitalizeFirst(shaped[0].Word + NoSpaceBefore)
	return envelope(PartQueryResult, wordsJSON(shaped))
}

// envelope wraps body in a single-part multipart envelope.
func envelope(name string, body []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(body) + 160)
	b.WriteString("\r\n")
	b.WriteString("--" + ResponseBoundary + "\r\n")
	b.WriteString("Content-Type: " + PartContentType + "\r\n")
	b.WriteString(`Content-Disposition: form-data; name="` + name + `"` + "\r\n")
	b.WriteString("\r\n")
	b.Write(body)
	b.WriteString("\r\n")
	b.WriteString("--" + ResponseBoundary + "--\r\n")
	return b.Bytes()
}

// wordsJSON renders {"words": [[{"word": ..., "confidence": ...}, ...]]}.
func wordsJSON(words []Word) []byte {
	var b bytes.Buffer
	b.WriteString(`{"words": [[`)
	for i, w := range words {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`{"word": `)
		writeLegacyString(&b, w.Word)
		b.WriteString(`, "confidence": `)
		writeLegacyString(&b, formatConfidence(w.Confidence))
		b.WriteString("}")
	}
	b.WriteString("]]}")
	return b.Bytes()
}

func retryJSON() []byte {
	var b bytes.Buffer
	b.WriteString(`{"Cause": 1, "Name": "AUDIO_INFO", "Prompt": `)
	writeLegacyString(&b, RetryPrompt)
	b.WriteString("}")
	return b.Bytes()
}

// capitalizeFirst upper-cases the first rune of s.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
