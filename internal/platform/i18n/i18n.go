// Package i18n resolves user locales against the set the product ships.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// BaseLocale is the canonical source locale.
const BaseLocale = "en-US"

var supported = []language.Tag{
	language.AmericanEnglish,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supported)

// SupportedTags returns the language tags the product ships messages for.
func SupportedTags() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}

// DefaultTag returns the default language tag.
func DefaultTag() language.Tag {
	return supported[0]
}

// ParseTag parses a single locale string against the supported set.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTag(), false
	}
	desired, err := language.Parse(value)
	if err != nil {
		return DefaultTag(), false
	}
	_, index, confidence := matcher.Match(desired)
	if confidence == language.No {
		return DefaultTag(), false
	}
	return supported[index], true
}

// MatchTags picks the best supported tag for the caller's preferences.
func MatchTags(desired []language.Tag) language.Tag {
	if len(desired) == 0 {
		return DefaultTag()
	}
	_, index, confidence := matcher.Match(desired...)
	if confidence == language.No {
		return DefaultTag()
	}
	return supported[index]
}

// ResolveAcceptLanguage picks the best supported tag from an
// Accept-Language header value. Empty or malformed headers fall back to
// the default tag.
func ResolveAcceptLanguage(header string) language.Tag {
	header = strings.TrimSpace(header)
	if header == "" {
		return DefaultTag()
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return DefaultTag()
	}
	return MatchTags(tags)
}
