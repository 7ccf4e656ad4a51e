package naming

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallbackName is used when a title sanitizes down to nothing.
const fallbackName = "NOTHING"

// unsafeReplacer maps characters that are legal in titles but problematic in
// file names. Path separators and colons keep a hyphen so the title stays
// readable; the rest are dropped.
var unsafeReplacer = strings.NewReplacer(
	":", "-",
	"/", "-",
	"\\", "-",
	"!", "",
	"?", "",
	"|", "",
	"\"", "",
	"<", "",
	">", "",
	"*", "",
)

// accentFolder decomposes characters and strips combining marks, so accented
// letters reduce to their ASCII base instead of vanishing.
var accentFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Sanitize converts a title into a filesystem-safe name: accents folded to
// ASCII, remaining non-ASCII dropped, unsafe characters replaced, whitespace
// collapsed, leading dots stripped. Deterministic and stable across calls.
func Sanitize(title string) string {
	folded, _, err := transform.String(accentFolder, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(r)
		}
	}

	name := unsafeReplacer.Replace(b.String())
	name = strings.Join(strings.Fields(name), " ")
	name = strings.TrimLeft(name, ".")
	name = strings.TrimSpace(name)
	if name == "" {
		return fallbackName
	}
	return name
}

// Resolve produces the base filesystem name for a video. The override, when
// present, wins verbatim subject to the same sanitation. The video id is
// always appended so two titles that sanitize identically never collide.
func Resolve(title, override, videoID string) string {
	base := override
	if base == "" {
		base = title
	}
	return fmt.Sprintf("%s-%s", Sanitize(base), videoID)
}

// File returns the resolved name with a suffix attached.
func File(title, override, videoID, suffix string) string {
	name := Resolve(title, override, videoID)
	if suffix == "" {
		return name
	}
	return name + "." + strings.TrimPrefix(suffix, ".")
}

// CoerceAlias validates a channel alias: ASCII alphanumeric only.
func CoerceAlias(alias string) (string, error) {
	var b strings.Builder
	for _, r := range alias {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "", fmt.Errorf("alias %q has no ASCII characters", alias)
	}
	for _, r := range out {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", fmt.Errorf("alias %q must be alphanumeric", alias)
		}
	}
	return out, nil
}
