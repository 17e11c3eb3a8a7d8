package credential

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const redacted = "[REDACTED]"

// Secret holds an API key. Every formatting path (fmt verbs, JSON, text
// marshalling) renders it as [REDACTED]; use Reveal to obtain the raw value.
type Secret struct {
	value string
}

// NewSecret wraps v, trimming surrounding whitespace.
func NewSecret(v string) Secret { return Secret{value: strings.TrimSpace(v)} }

// Reveal returns the raw key. Only request builders should call it.
func (s Secret) Reveal() string { return s.value }

// Empty reports whether no key is set.
func (s Secret) Empty() bool { return s.value == "" }

// Equal compares two secrets without exposing either.
func (s Secret) Equal(o Secret) bool { return s.value == o.value }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// Format implements fmt.Formatter so that %x, %q and friends never leak.
func (s Secret) Format(f fmt.State, _ rune) { _, _ = io.WriteString(f, redacted) }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Mask returns a short preview suitable for display, e.g. "sk-****xyz".
func (s Secret) Mask() string {
	if s.value == "" {
		return ""
	}
	r := []rune(s.value)
	if len(r) <= 8 {
		return "******"
	}
	return string(r[:3]) + "****" + string(r[len(r)-3:])
}

// Redact replaces every occurrence of the key in text.
func (s Secret) Redact(text string) string {
	if s.value == "" {
		return text
	}
	return strings.ReplaceAll(text, s.value, redacted)
}
