package chat

import (
	"context"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/termchat-cli/internal/ai"
	"github.com/KaramelBytes/termchat-cli/internal/credential"
)

// terminal is a scripted LineReader, Prompter and Renderer. Every read
// consumes the next scripted answer; an exhausted script reads as EOF.
type terminal struct {
	answers  []string
	outcomes []Outcome
	resets   int
}

func (t *terminal) next() (string, error) {
	if len(t.answers) == 0 {
		return "", io.EOF
	}
	a := t.answers[0]
	t.answers = t.answers[1:]
	return a, nil
}

func (t *terminal) ReadLine(string) (string, error) { return t.next() }

func (t *terminal) Choose(_ string, options []string) (int, bool, error) {
	a, err := t.next()
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil || n <= 0 || n > len(options) {
		return 0, false, nil
	}
	return n - 1, true, nil
}

func (t *terminal) Confirm(string, bool) (bool, error) {
	a, err := t.next()
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(a), "y"), nil
}

func (t *terminal) ReadSecret(string) (string, error) { return t.next() }

func (t *terminal) Ask(_ string, def string) (string, error) {
	a, err := t.next()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(a) == "" {
		return def, nil
	}
	return a, nil
}

func (t *terminal) Render(o Outcome) { t.outcomes = append(t.outcomes, o) }
func (t *terminal) Reset()           { t.resets++ }

func (t *terminal) last() Outcome {
	if len(t.outcomes) == 0 {
		return Outcome{}
	}
	return t.outcomes[len(t.outcomes)-1]
}

// recordingSender answers every request with reply, or err when set.
type recordingSender struct {
	reply string
	err   error
	calls [][]ai.Message
	creds []credential.Credential
}

func (s *recordingSender) Send(_ context.Context, c credential.Credential, msgs []ai.Message) (string, error) {
	s.calls = append(s.calls, msgs)
	s.creds = append(s.creds, c)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type fixture struct {
	store   *credential.Store
	backend *credential.MemoryBackend
	term    *terminal
	sender  *recordingSender
	d       *Dispatcher
	tr      *Transcript
}

func newFixture(t *testing.T, opts ...DispatcherOption) *fixture {
	t.Helper()
	b := credential.NewMemoryBackend(nil)
	store := credential.New(b, nil)
	require.NoError(t, store.Load())
	term := &terminal{}
	sender := &recordingSender{reply: "assistant reply"}
	return &fixture{
		store:   store,
		backend: b,
		term:    term,
		sender:  sender,
		d:       NewDispatcher(store, sender, term, opts...),
		tr:      &Transcript{},
	}
}

// run handles line with the given scripted follow-up answers.
func (f *fixture) run(line string, answers ...string) Outcome {
	f.term.answers = append(f.term.answers, answers...)
	return f.d.Handle(context.Background(), f.tr, line)
}
