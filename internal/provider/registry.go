package provider

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Path addresses a value inside a decoded JSON document. Numeric segments
// index arrays, everything else selects object keys.
type Path []string

func (p Path) String() string { return strings.Join(p, ".") }

// Descriptor is the static metadata needed to talk to one provider.
type Descriptor struct {
	Kind      Kind
	ID        string
	Name      string
	EnvPrefix string
	Schema    Schema

	// BaseURL is joined with Endpoint; Endpoint may contain {model}.
	BaseURL  string
	Endpoint string

	// AuthHeader carries the key, prefixed with AuthPrefix.
	AuthHeader   string
	AuthPrefix   string
	ExtraHeaders map[string]string

	DefaultModel string

	// ResponsePaths and ErrorPaths are tried in order; the first non-empty
	// string wins.
	ResponsePaths []Path
	ErrorPaths    []Path
}

// URL builds the request URL for model. A non-empty baseOverride replaces
// the descriptor's BaseURL.
func (d Descriptor) URL(baseOverride, model string) string {
	base := d.BaseURL
	if baseOverride != "" {
		base = baseOverride
	}
	return strings.TrimRight(base, "/") + strings.ReplaceAll(d.Endpoint, "{model}", model)
}

// Model returns model, or the descriptor default when model is blank.
func (d Descriptor) Model(model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return d.DefaultModel
}

var commonErrorPaths = []Path{{"error", "message"}, {"error"}, {"message"}}

var openAIResponsePaths = []Path{{"choices", "0", "message", "content"}}

var descriptors = map[Kind]Descriptor{
	Google: {
		ID:            "google",
		Name:          "Google (Gemini)",
		EnvPrefix:     "GOOGLE",
		Schema:        SchemaGeminiNative,
		BaseURL:       "https://generativelanguage.googleapis.com/v1beta",
		Endpoint:      "/models/{model}:generateContent",
		AuthHeader:    "x-goog-api-key",
		DefaultModel:  "gemini-2.5-pro",
		ResponsePaths: []Path{{"candidates", "0", "content", "parts", "0", "text"}},
		ErrorPaths:    commonErrorPaths,
	},
	OpenRouter: {
		ID:         "openrouter",
		Name:       "OpenRouter",
		EnvPrefix:  "OPENROUTER",
		Schema:     SchemaOpenAIChat,
		BaseURL:    "https://openrouter.ai/api/v1",
		Endpoint:   "/chat/completions",
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
		ExtraHeaders: map[string]string{
			"HTTP-Referer": "https://github.com/KaramelBytes/termchat-cli",
			"X-Title":      "TermChat",
		},
		DefaultModel:  "openai/gpt-oss-20b:free",
		ResponsePaths: openAIResponsePaths,
		ErrorPaths:    commonErrorPaths,
	},
	OpenAI: {
		ID:            "openai",
		Name:          "OpenAI",
		EnvPrefix:     "OPENAI",
		Schema:        SchemaOpenAIChat,
		BaseURL:       "https://api.openai.com/v1",
		Endpoint:      "/chat/completions",
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		DefaultModel:  "gpt-3.5-turbo",
		ResponsePaths: openAIResponsePaths,
		ErrorPaths:    commonErrorPaths,
	},
	Anthropic: {
		ID:            "anthropic",
		Name:          "Anthropic (Claude)",
		EnvPrefix:     "ANTHROPIC",
		Schema:        SchemaAnthropicMessages,
		BaseURL:       "https://api.anthropic.com/v1",
		Endpoint:      "/messages",
		AuthHeader:    "x-api-key",
		ExtraHeaders:  map[string]string{"anthropic-version": "2023-06-01"},
		DefaultModel:  "claude-3-sonnet-20240229",
		ResponsePaths: []Path{{"content", "0", "text"}},
		ErrorPaths:    commonErrorPaths,
	},
	XAI: {
		ID:            "xai",
		Name:          "xAI (Grok)",
		EnvPrefix:     "XAI",
		Schema:        SchemaOpenAIChat,
		BaseURL:       "https://api.x.ai/v1",
		Endpoint:      "/chat/completions",
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		DefaultModel:  "grok-beta",
		ResponsePaths: openAIResponsePaths,
		ErrorPaths:    commonErrorPaths,
	},
	DeepSeek: {
		ID:            "deepseek",
		Name:          "DeepSeek",
		EnvPrefix:     "DEEPSEEK",
		Schema:        SchemaOpenAIChat,
		BaseURL:       "https://api.deepseek.com/v1",
		Endpoint:      "/chat/completions",
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		DefaultModel:  "deepseek-chat",
		ResponsePaths: openAIResponsePaths,
		ErrorPaths:    commonErrorPaths,
	},
	Qwen: {
		ID:            "qwen",
		Name:          "Qwen",
		EnvPrefix:     "QWEN",
		Schema:        SchemaOpenAIChat,
		BaseURL:       "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Endpoint:      "/chat/completions",
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		DefaultModel:  "qwen-turbo",
		ResponsePaths: openAIResponsePaths,
		ErrorPaths:    commonErrorPaths,
	},
	HuggingFace: {
		ID:            "huggingface",
		Name:          "HuggingFace",
		EnvPrefix:     "HUGGINGFACE",
		Schema:        SchemaHFInference,
		BaseURL:       "https://api-inference.huggingface.co",
		Endpoint:      "/models/{model}",
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		DefaultModel:  "mistralai/Mistral-7B-Instruct-v0.2",
		ResponsePaths: []Path{{"0", "generated_text"}, {"generated_text"}},
		ErrorPaths:    commonErrorPaths,
	},
}

// Lookup returns the descriptor for k. The returned value is a copy and may
// be modified freely by the caller.
func Lookup(k Kind) (Descriptor, bool) {
	d, ok := descriptors[k]
	if !ok {
		return Descriptor{}, false
	}
	d.ExtraHeaders = maps.Clone(d.ExtraHeaders)
	d.ResponsePaths = slices.Clone(d.ResponsePaths)
	d.ErrorPaths = slices.Clone(d.ErrorPaths)
	return d, true
}

// Catalog returns a descriptor for every provider in catalog order.
func Catalog() []Descriptor {
	out := make([]Descriptor, 0, len(descriptors))
	for _, k := range Kinds() {
		d, _ := Lookup(k)
		out = append(out, d)
	}
	return out
}

func validateCatalog() error {
	if len(descriptors) != len(Kinds()) {
		return fmt.Errorf("catalog has %d descriptors for %d kinds", len(descriptors), len(Kinds()))
	}
	seen := make(map[string]Kind, len(descriptors))
	for _, k := range Kinds() {
		d, ok := descriptors[k]
		if !ok {
			return fmt.Errorf("no descriptor for kind %d", uint8(k))
		}
		if !d.Schema.Valid() {
			return fmt.Errorf("%s: invalid schema %q", d.ID, d.Schema)
		}
		if d.BaseURL == "" || d.AuthHeader == "" || d.DefaultModel == "" || d.EnvPrefix == "" {
			return fmt.Errorf("%s: incomplete descriptor", d.ID)
		}
		if len(d.ResponsePaths) == 0 {
			return fmt.Errorf("%s: no response path", d.ID)
		}
		if prev, dup := seen[d.EnvPrefix]; dup {
			return fmt.Errorf("%s: env prefix already used by kind %d", d.ID, uint8(prev))
		}
		seen[d.EnvPrefix] = k
	}
	return nil
}

func init() {
	for k, d := range descriptors {
		d.Kind = k
		descriptors[k] = d
	}
	if err := validateCatalog(); err != nil {
		panic("provider catalog: " + err.Error())
	}
}
