// Package filter implements the link redaction transform applied to the
// message body before dispatch.
package filter

import (
	"regexp"
	"strings"
)

// Mask replaces each redacted fragment.
const Mask = "****"

// linkPattern matches URL-shaped substrings: an optional scheme marker, an
// optional subdomain, a domain label, a mandatory suffix label, then a
// path separator, space, or end of text. Only the scheme marker and the
// suffix label are captured.
var linkPattern = regexp.MustCompile(`(?:(http)s?://)?(?:[\w-]+\.)?[\w-]+(\.[\w-]+)(?:/| |$)`)

// RedactLinks masks URL-shaped substrings in text.
//
// Matches are collected against the input once; then each non-empty
// captured group is replaced at its first remaining occurrence in the
// evolving text. The mask covers only the captured groups, so parts of a
// matched domain outside them stay visible ("https://example.com" becomes
// "****s://example****"). Downstream consumers depend on this exact output
// shape; do not widen it to whole-match masking.
func RedactLinks(text string) string {
	for _, match := range linkPattern.FindAllStringSubmatch(text, -1) {
		for _, group := range match[1:] {
			if group == "" {
				continue
			}
			text = strings.Replace(text, group, Mask, 1)
		}
	}

	return text
}
