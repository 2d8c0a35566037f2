package translate

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto asks the API to detect the source language.
const Auto = "auto"

// Errors returned for rejected input.
var (
	ErrEmptyText       = errors.New("text to translate is empty")
	ErrUnknownLanguage = errors.New("unknown language code")
	ErrAutoTarget      = errors.New("target language cannot be auto")
)

// Common lists the languages offered by the interactive prompt.
var Common = []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh", "ar"}

// ParseLanguage normalizes a BCP 47 code such as "EN" or "pt-BR".
// "auto" and "" return Auto when allowAuto is set.
func ParseLanguage(code string, allowAuto bool) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, Auto) {
		if allowAuto {
			return Auto, nil
		}
		return "", ErrAutoTarget
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	if base, conf := tag.Base(); conf == language.No || base.String() == "und" {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return tag.String(), nil
}

// DisplayName returns the English name of a language code, e.g.
// "ja" -> "Japanese". Auto and unknown codes are returned unchanged.
func DisplayName(code string) string {
	if code == Auto {
		return "Auto-detect"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
