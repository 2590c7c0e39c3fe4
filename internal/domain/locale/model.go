package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Fallback is the display locale used whenever the actor's locale is unknown.
const Fallback = "fr"

// Supported locale tags, fallback first.
const (
	French  = "fr"
	English = "en"
	Catalan = "cat"
)

// Supported lists the locales the console has messages for.
var Supported = []string{French, English, Catalan}

// supportedTags are the BCP 47 forms of Supported, in the same order.
// "cat" is the console's historical name for Catalan ("ca").
var supportedTags = []language.Tag{language.French, language.English, language.Catalan}

var matcher = language.NewMatcher(supportedTags)

// IsSupported reports whether tag is one of Supported.
func IsSupported(tag string) bool {
	for _, s := range Supported {
		if s == tag {
			return true
		}
	}
	return false
}

// Normalize maps any language tag to a supported locale.
// PRE: none
// POST: Returns a member of Supported; Fallback for empty or unmatched tags
func Normalize(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return Fallback
	}
	if IsSupported(tag) {
		return tag
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return Fallback
	}
	_, idx, confidence := matcher.Match(parsed)
	if confidence == language.No {
		return Fallback
	}
	return Supported[idx]
}

// BCP47 returns the language tag go-i18n and HTTP headers expect for a supported locale.
func BCP47(tag string) language.Tag {
	switch Normalize(tag) {
	case English:
		return language.English
	case Catalan:
		return language.Catalan
	default:
		return language.French
	}
}
