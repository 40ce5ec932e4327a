package capture

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KeyEvent is a raw key-down event as delivered by the presentation layer.
type KeyEvent struct {
	Key   string
	Ctrl  bool
	Alt   bool
	Shift bool
	Meta  bool
}

var lower = cases.Lower(language.Und)

// modifierKeys are keys that only ever contribute to a combo.
var modifierKeys = map[string]bool{
	"control":  true,
	"ctrl":     true,
	"alt":      true,
	"altgraph": true,
	"shift":    true,
	"meta":     true,
	"os":       true,
}

// keyAliases maps key names to the spelling used in combos.
var keyAliases = map[string]string{
	"spacebar": "space",
	"escape":   "esc",
}

// canonicalKeyName lower-cases a key and applies aliases.
// A single space character is the space key, not whitespace.
func canonicalKeyName(key string) string {
	if key == " " {
		return "space"
	}
	k := lower.String(strings.Join(strings.Fields(key), ""))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// NormalizeKey converts a key event into a combo string such as
// "ctrl+shift+a" or "space". Modifiers are always emitted in the order
// ctrl, alt, shift, meta. A lone modifier press yields no combo.
func NormalizeKey(ev KeyEvent) (string, bool) {
	key := canonicalKeyName(ev.Key)
	if key == "" || modifierKeys[key] {
		return "", false
	}

	var b strings.Builder
	if ev.Ctrl {
		b.WriteString("ctrl+")
	}
	if ev.Alt {
		b.WriteString("alt+")
	}
	if ev.Shift {
		b.WriteString("shift+")
	}
	if ev.Meta {
		b.WriteString("meta+")
	}
	b.WriteString(key)
	return b.String(), true
}

// KeysEqual compares two key combos ignoring case, whitespace, aliases
// and modifier order.
func KeysEqual(a, b string) bool {
	return CanonicalCombo(a) == CanonicalCombo(b)
}

// CanonicalCombo rewrites a combo in the form NormalizeKey produces, so
// "Shift+Ctrl+A" becomes "ctrl+shift+a". A combo that is only modifiers
// keeps its parts in their given order.
func CanonicalCombo(combo string) string {
	if k, ok := NormalizeKey(ParseCombo(combo)); ok {
		return k
	}
	return canonicalCombo(combo)
}

func canonicalCombo(combo string) string {
	if combo == " " {
		return "space"
	}
	parts := strings.Split(combo, "+")
	for i, p := range parts {
		parts[i] = canonicalKeyName(p)
	}
	return strings.Join(parts, "+")
}

// ParseCombo turns a combo string such as "Ctrl+Shift+A" back into a key
// event. The last part is the key; earlier parts set modifiers.
func ParseCombo(combo string) KeyEvent {
	if combo == " " || combo == "+" {
		return KeyEvent{Key: combo}
	}
	parts := strings.Split(combo, "+")
	ev := KeyEvent{Key: parts[len(parts)-1]}
	for _, p := range parts[:len(parts)-1] {
		switch canonicalKeyName(p) {
		case "ctrl", "control":
			ev.Ctrl = true
		case "alt", "altgraph":
			ev.Alt = true
		case "shift":
			ev.Shift = true
		case "meta", "os":
			ev.Meta = true
		}
	}
	return ev
}
