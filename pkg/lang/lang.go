// Package lang maps the locale codes sent by legacy clients to the language tag
// and recognizer model used by the speech backend.
//
// Resolution happens in two stages. First, codes the backend no longer accepts
// are rewritten to a supported neighbour through an alias table. Second, the
// normalised code selects a model; codes without an explicit entry fall back to
// [DefaultModel] instead of being rejected.
//
// All tables are package-level values that are never written after init, so
// [Resolve] is safe for unsynchronised concurrent use.
package lang

import "strings"

// DefaultModel is the recognizer model used for any language without an
// explicit entry in the model table.
const DefaultModel = "chirp_2"

// Resolution is the outcome of resolving a client locale code.
type Resolution struct {
	// Language is the lower-cased, alias-normalised language tag sent to the backend.
	Language string

	// Model is the backend recognizer model identifier.
	Model string
}

// aliases rewrites retired locale codes to a currently supported one. Targets
// must never be keys of this map themselves.
var aliases = map[string]string{
	// Speech v2 dropped en-CA; chirp_2 is universal so en-US is close enough.
	"en-ca": "en-us",
	// es-MX was dropped alongside en-CA.
	"es-mx": "es-us",
	// sw-TZ was dropped; sw-KE is the closest remaining variant.
	"sw-tz": "sw-ke",
	// Firmware sends nb-NO where the backend expects no-NO.
	"nb-no": "no-no",
	// Auto-detect is sent as a pseudo locale.
	"auto-auto": "auto",
}

// models maps a normalised language tag to the recognizer model serving it.
var models = map[string]string{
	"af-za":  "chirp_2",
	"cs-cz":  "chirp_2",
	"da-dk":  "chirp_2",
	"de-de":  "chirp_2",
	"en-au":  "chirp_2",
	"en-us":  "chirp_2",
	"en-gb":  "chirp_2",
	"en-in":  "chirp_2",
	"fi-fi":  "chirp_2",
	"fil-ph": "chirp_2",
	"fr-ca":  "chirp_2",
	"fr-fr":  "chirp_2",
	"gl-es":  "chirp_2",
	"id-id":  "chirp_2",
	"is-is":  "chirp_2",
	"it-it":  "chirp_2",
	"ko-kr":  "chirp_2",
	"lv-lv":  "chirp_2",
	"lt-lt":  "chirp_2",
	"hr-hr":  "chirp_2",
	"hu-hu":  "chirp_2",
	"ms-my":  "chirp_2",
	"nl-nl":  "chirp_2",
	"no-no":  "chirp_2",
	"pt-pt":  "chirp_2",
	"pl-pl":  "chirp_2",
	"ro-ro":  "chirp_2",
	"ru-ru":  "chirp_2",
	"uk-ua":  "chirp_2",
	"es-es":  "chirp_2",
	"es-us":  "chirp_2",
	"sk-sk":  "chirp_2",
	"sl-si":  "chirp_2",
	"sv-se":  "chirp_2",
	"sw-ke":  "chirp_2",
	"tr-tr":  "chirp_2",
	"zu-za":  "chirp_2",
}

// Normalize lower-cases code and applies the alias table.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if alias, ok := aliases[code]; ok {
		return alias
	}
	return code
}

// Resolve returns the backend language tag and model for a client locale code.
// Lookup is case-insensitive. Unknown codes are passed through with
// [DefaultModel]; Resolve never fails.
func Resolve(code string) Resolution {
	normalized := Normalize(code)
	model, ok := models[normalized]
	if !ok {
		model = DefaultModel
	}
	return Resolution{Language: normalized, Model: model}
}

// Supported reports whether code (after normalisation) has an explicit model
// entry. Unsupported codes are still resolvable; this exists for diagnostics.
func Supported(code string) bool {
	_, ok := models[Normalize(code)]
	return ok
}

// Aliases returns a copy of the alias table.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}
