package chat

import (
	"slices"

	"github.com/KaramelBytes/termchat-cli/internal/ai"
	"github.com/KaramelBytes/termchat-cli/internal/utils"
)

// Turn is one entry of the conversation.
type Turn struct {
	Role ai.Role
	Text string
}

// Transcript is the append-only conversation of the current process. Only
// Clear removes turns.
type Transcript struct {
	turns []Turn
}

func (t *Transcript) Append(role ai.Role, text string) {
	t.turns = append(t.turns, Turn{Role: role, Text: text})
}

func (t *Transcript) Len() int { return len(t.turns) }

// Clear drops every turn.
func (t *Transcript) Clear() { t.turns = nil }

// Turns returns a copy of the turns, oldest first.
func (t *Transcript) Turns() []Turn { return slices.Clone(t.turns) }

// Messages converts the transcript into the client's message form.
func (t *Transcript) Messages() []ai.Message {
	out := make([]ai.Message, len(t.turns))
	for i, turn := range t.turns {
		out[i] = ai.Message{Role: turn.Role, Content: turn.Text}
	}
	return out
}

// Tokens estimates the size of the transcript in tokens.
func (t *Transcript) Tokens() int {
	n := 0
	for _, turn := range t.turns {
		n += utils.CountTokens(turn.Text)
	}
	return n
}
