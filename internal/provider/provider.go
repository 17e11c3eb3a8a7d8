package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies one of the supported LLM vendors. The set is closed; the
// numeric values follow the order providers are offered to the user and are
// also accepted as legacy identifiers in credential files.
type Kind uint8

const (
	Google Kind = iota + 1
	OpenRouter
	OpenAI
	Anthropic
	XAI
	DeepSeek
	Qwen
	HuggingFace
)

// Schema names the request/response shape a provider speaks.
type Schema string

const (
	SchemaOpenAIChat        Schema = "openai-chat"
	SchemaGeminiNative      Schema = "gemini-native"
	SchemaAnthropicMessages Schema = "anthropic-messages"
	SchemaHFInference       Schema = "hf-inference"
)

// Valid reports whether s is one of the known schema variants.
func (s Schema) Valid() bool {
	switch s {
	case SchemaOpenAIChat, SchemaGeminiNative, SchemaAnthropicMessages, SchemaHFInference:
		return true
	}
	return false
}

// ErrUnknownKind is returned by ParseKind for names outside the catalog.
var ErrUnknownKind = errors.New("unknown provider")

// Kinds returns every supported provider in catalog order.
func Kinds() []Kind {
	return []Kind{Google, OpenRouter, OpenAI, Anthropic, XAI, DeepSeek, Qwen, HuggingFace}
}

// Valid reports whether k is part of the catalog.
func (k Kind) Valid() bool { return k >= Google && k <= HuggingFace }

// String returns the human readable provider name.
func (k Kind) String() string {
	if d, ok := Lookup(k); ok {
		return d.Name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ID returns the lowercase identifier used on the command line.
func (k Kind) ID() string {
	if d, ok := Lookup(k); ok {
		return d.ID
	}
	return ""
}

// EnvPrefix returns the key prefix used in the credential file (e.g. OPENAI).
func (k Kind) EnvPrefix() string {
	if d, ok := Lookup(k); ok {
		return d.EnvPrefix
	}
	return ""
}

// ParseKind resolves a provider from its id ("openai"), env prefix
// ("OPENAI"), display name ("OpenAI") or legacy numeric id ("3").
func ParseKind(s string) (Kind, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownKind)
	}
	if n, err := strconv.Atoi(v); err == nil {
		k := Kind(n)
		if n > 0 && n < 256 && k.Valid() {
			return k, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, v)
	}
	for _, k := range Kinds() {
		d := descriptors[k]
		if strings.EqualFold(v, d.ID) || strings.EqualFold(v, d.EnvPrefix) || strings.EqualFold(v, d.Name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownKind, v)
}
