package auth

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrBadHost is returned when the request host does not carry a token and a
// language.
var ErrBadHost = errors.New("auth: malformed host label")

// ParseHost extracts the access token and the raw language code from host.
// A port suffix is ignored. The language is everything after the first
// hyphen of the first label, so codes such as "cmn-hans-cn" survive intact.
func ParseHost(host string) (token, language string, err error) {
	if h, _, splitErr := net.SplitHostPort(host); splitErr == nil {
		host = h
	}
	label, _, _ := strings.Cut(host, ".")
	token, language, ok := strings.Cut(label, "-")
	if !ok || token == "" || language == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadHost, redactHost(label))
	}
	return token, language, nil
}

// redactHost hides everything but the first characters of a label that may
// contain a token.
func redactHost(label string) string {
	const keep = 4
	if len(label) <= keep {
		return label
	}
	return label[:keep] + "…"
}
