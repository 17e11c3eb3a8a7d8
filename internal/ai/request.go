package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn as sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// params are the generation knobs applied where a schema uses them.
type params struct {
	MaxTokens   int
	Temperature float64
}

// openai-chat

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// anthropic-messages

type anthropicRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// gemini-native

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

// hf-inference

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

const hfMaxNewTokens = 500

// buildBody encodes transcript for the schema. Messages are always sent
// oldest first.
func buildBody(schema provider.Schema, model string, transcript []Message, p params) ([]byte, error) {
	var body any
	switch schema {
	case provider.SchemaOpenAIChat:
		body = chatRequest{Model: model, Messages: transcript}
	case provider.SchemaAnthropicMessages:
		body = anthropicRequest{Model: model, Messages: transcript, MaxTokens: p.MaxTokens}
	case provider.SchemaGeminiNative:
		body = geminiRequest{Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: joinContents(transcript)}},
		}}}
	case provider.SchemaHFInference:
		maxNew := hfMaxNewTokens
		if p.MaxTokens > 0 && p.MaxTokens < maxNew {
			maxNew = p.MaxTokens
		}
		body = hfRequest{
			Inputs:     rolePrefixed(transcript),
			Parameters: hfParameters{MaxNewTokens: maxNew, Temperature: p.Temperature},
		}
	default:
		return nil, fmt.Errorf("unsupported schema %q", schema)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return b, nil
}

// joinContents concatenates message contents without role markers.
func joinContents(transcript []Message) string {
	parts := make([]string, 0, len(transcript))
	for _, m := range transcript {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// rolePrefixed renders "role: content" lines.
func rolePrefixed(transcript []Message) string {
	var sb strings.Builder
	for i, m := range transcript {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}
