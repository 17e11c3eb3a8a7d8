package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/termchat-cli/internal/ai"
	"github.com/KaramelBytes/termchat-cli/internal/credential"
	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

// ErrNoCredentials is reported by /switch and /deleteapi on an empty store.
var ErrNoCredentials = errors.New("no API keys saved")

// Sender issues one chat request. *ai.Client implements it.
type Sender interface {
	Send(ctx context.Context, cred credential.Credential, transcript []ai.Message) (string, error)
}

// Prompter asks the user follow-up questions during interactive commands.
type Prompter interface {
	// Choose lists options and returns the chosen index; ok is false when
	// the user cancels.
	Choose(title string, options []string) (index int, ok bool, err error)
	Confirm(question string, def bool) (bool, error)
	// ReadSecret reads a value without echoing it.
	ReadSecret(label string) (string, error)
	// Ask reads a line, returning def for blank input.
	Ask(label, def string) (string, error)
}

// Action tells the renderer what an Outcome carries.
type Action int

const (
	ActionNone Action = iota
	ActionReply
	ActionNotice
	ActionWarning
	ActionError
	ActionHelp
	ActionHistory
	ActionJoke
	ActionClear
	ActionExit
)

// Outcome is the plain result of handling one input line.
type Outcome struct {
	Action Action
	Text   string
	Err    error
	Hint   string
	// Local marks replies answered without contacting a provider.
	Local    bool
	Turns    []Turn
	Tokens   int
	Commands []CommandInfo
}

func notice(format string, args ...any) Outcome {
	return Outcome{Action: ActionNotice, Text: fmt.Sprintf(format, args...)}
}

func warning(format string, args ...any) Outcome {
	return Outcome{Action: ActionWarning, Text: fmt.Sprintf(format, args...)}
}

func failure(err error, hint string) Outcome {
	return Outcome{Action: ActionError, Err: err, Hint: hint}
}

var cancelled = warning("Operation cancelled.")

// Dispatcher classifies input lines and executes them against the
// credential store and the sender. It keeps no state between lines.
type Dispatcher struct {
	store  *credential.Store
	sender Sender
	prompt Prompter
	canned map[string]string
	log    *zap.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCannedReplies answers the given inputs (matched case-insensitively
// after trimming) locally instead of contacting the provider.
func WithCannedReplies(replies map[string]string) DispatcherOption {
	return func(d *Dispatcher) {
		for k, v := range replies {
			d.canned[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

func NewDispatcher(store *credential.Store, sender Sender, prompt Prompter, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		sender: sender,
		prompt: prompt,
		canned: make(map[string]string),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one line of input.
func (d *Dispatcher) Handle(ctx context.Context, t *Transcript, line string) Outcome {
	text := strings.TrimSpace(line)
	if text == "" {
		return Outcome{}
	}
	if IsCommand(text) {
		return d.command(ctx, t, text)
	}
	return d.chat(ctx, t, text)
}

// Status describes the active provider for the session banner.
func (d *Dispatcher) Status() Outcome {
	c, err := d.store.ActiveCredential()
	if err != nil {
		return warning("No active provider configured. Use /addapi to add an API key or /switch to select one.")
	}
	return notice("Active provider: %s | Model: %s. Type a message to chat or /help for commands.", c.Provider, c.Model)
}

// Setup runs the first-run flow: add a credential and make it active.
func (d *Dispatcher) Setup() Outcome {
	return d.addCredential(true)
}

func (d *Dispatcher) command(ctx context.Context, t *Transcript, line string) Outcome {
	cmd, name, ok := ParseCommand(line)
	if !ok {
		return failure(fmt.Errorf("%w: %s", ErrUnknownCommand, name), "Type /help to see available commands.")
	}
	d.log.Debug("command", zap.String("name", string(cmd)))
	switch cmd {
	case CmdHelp:
		return Outcome{Action: ActionHelp, Commands: append([]CommandInfo(nil), commandHelp...)}
	case CmdExit:
		return Outcome{Action: ActionExit, Text: "Thank you for using TermChat! Goodbye!"}
	case CmdClear:
		t.Clear()
		return Outcome{Action: ActionClear, Text: "Chat history cleared."}
	case CmdJoke:
		return Outcome{Action: ActionJoke, Text: randomJoke()}
	case CmdHistory:
		return Outcome{Action: ActionHistory, Turns: t.Turns(), Tokens: t.Tokens()}
	case CmdAddAPI:
		return d.addCredential(false)
	case CmdSwitch:
		return d.switchProvider()
	case CmdDeleteAPI:
		return d.deleteCredential()
	}
	return failure(fmt.Errorf("%w: %s", ErrUnknownCommand, name), "")
}

func (d *Dispatcher) chat(ctx context.Context, t *Transcript, text string) Outcome {
	if reply, ok := d.canned[strings.ToLower(text)]; ok {
		return Outcome{Action: ActionReply, Text: reply, Local: true}
	}
	cred, err := d.store.ActiveCredential()
	if err != nil {
		return failure(err, "Use /addapi to add an API key or /switch to select a provider.")
	}
	t.Append(ai.RoleUser, text)
	reply, err := d.sender.Send(ctx, cred, t.Messages())
	if err != nil {
		var aerr *ai.Error
		hint := ""
		if errors.As(err, &aerr) {
			hint = aerr.Hint()
		}
		return failure(err, hint)
	}
	t.Append(ai.RoleAssistant, reply)
	return Outcome{Action: ActionReply, Text: reply}
}

func (d *Dispatcher) addCredential(activate bool) Outcome {
	kinds := provider.Kinds()
	options := make([]string, len(kinds))
	for i, k := range kinds {
		options[i] = k.String()
		if _, saved := d.store.Get(k); saved {
			options[i] += " (saved)"
		}
	}
	idx, ok, err := d.prompt.Choose("Available LLM providers", options)
	if err != nil {
		return failure(err, "")
	}
	if !ok || idx < 0 || idx >= len(kinds) {
		return cancelled
	}
	k := kinds[idx]
	desc, _ := provider.Lookup(k)

	if _, exists := d.store.Get(k); exists {
		overwrite, err := d.prompt.Confirm(fmt.Sprintf("An API key for %s is already saved. Overwrite it?", k), false)
		if err != nil {
			return failure(err, "")
		}
		if !overwrite {
			return cancelled
		}
	}

	raw, err := d.prompt.ReadSecret(fmt.Sprintf("%s API key (leave blank to cancel)", k))
	if err != nil {
		return failure(err, "")
	}
	key := credential.NewSecret(raw)
	if key.Empty() {
		return warning("No API key entered. Operation cancelled.")
	}

	model, err := d.prompt.Ask("Model name (type 'cancel' to abort)", desc.DefaultModel)
	if err != nil {
		return failure(err, "")
	}
	if strings.EqualFold(strings.TrimSpace(model), "cancel") {
		return cancelled
	}

	if err := d.store.AddOrUpdate(k, key, model); err != nil {
		return failure(err, "")
	}
	saved, _ := d.store.Get(k)
	msg := fmt.Sprintf("Saved %s API key %s with model %s.", k, key.Mask(), saved.Model)

	if !activate {
		activate, err = d.prompt.Confirm(fmt.Sprintf("Make %s the active provider?", k), true)
		if err != nil {
			return failure(err, msg)
		}
	}
	if activate {
		if err := d.store.SetActive(k); err != nil {
			return failure(err, msg)
		}
		msg += fmt.Sprintf(" Active provider is now %s.", k)
	}
	return notice("%s", msg)
}

// savedOptions renders the store listing for selection menus.
func (d *Dispatcher) savedOptions() ([]provider.Kind, []string) {
	active, _ := d.store.Active()
	var kinds []provider.Kind
	var options []string
	for k, model := range d.store.List() {
		label := fmt.Sprintf("%s (%s)", k, model)
		if k == active {
			label += " [active]"
		}
		kinds = append(kinds, k)
		options = append(options, label)
	}
	return kinds, options
}

func (d *Dispatcher) switchProvider() Outcome {
	kinds, options := d.savedOptions()
	if len(kinds) == 0 {
		return failure(ErrNoCredentials, "Use /addapi to add an API key first.")
	}
	idx, ok, err := d.prompt.Choose("Saved API keys", options)
	if err != nil {
		return failure(err, "")
	}
	if !ok || idx < 0 || idx >= len(kinds) {
		return cancelled
	}
	k := kinds[idx]
	if err := d.store.SetActive(k); err != nil {
		return failure(err, "")
	}
	c, _ := d.store.Get(k)
	return notice("Active provider is now %s (model %s).", k, c.Model)
}

func (d *Dispatcher) deleteCredential() Outcome {
	kinds, options := d.savedOptions()
	if len(kinds) == 0 {
		return failure(ErrNoCredentials, "")
	}
	idx, ok, err := d.prompt.Choose("Saved API keys", options)
	if err != nil {
		return failure(err, "")
	}
	if !ok || idx < 0 || idx >= len(kinds) {
		return cancelled
	}
	k := kinds[idx]
	yes, err := d.prompt.Confirm(fmt.Sprintf("Delete the API key for %s?", k), false)
	if err != nil {
		return failure(err, "")
	}
	if !yes {
		return cancelled
	}
	wasActive := false
	if active, ok := d.store.Active(); ok && active == k {
		wasActive = true
	}
	if err := d.store.Remove(k); err != nil {
		return failure(err, "")
	}
	if wasActive {
		return warning("Deleted the API key for %s. No provider is active now; use /switch to select one.", k)
	}
	return notice("Deleted the API key for %s.", k)
}
