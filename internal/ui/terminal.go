package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/KaramelBytes/termchat-cli/internal/ai"
	"github.com/KaramelBytes/termchat-cli/internal/chat"
	"github.com/KaramelBytes/termchat-cli/internal/utils"
)

const historyPreview = 100

// Terminal is the plain-text console: it reads lines from in and writes
// everything to out. It implements chat.LineReader, chat.Prompter and
// chat.Renderer.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the input descriptor when in is an interactive terminal, else -1.
	fd int
}

var (
	_ chat.LineReader = (*Terminal)(nil)
	_ chat.Prompter   = (*Terminal)(nil)
	_ chat.Renderer   = (*Terminal)(nil)
)

func New(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
	}
	return t
}

func (t *Terminal) interactive() bool { return t.fd >= 0 }

// Welcome prints the start-up banner.
func (t *Terminal) Welcome() {
	fmt.Fprintln(t.out, "TermChat: chat with LLM providers from your terminal")
	fmt.Fprintln(t.out, "Type /help for commands, /exit to quit.")
	fmt.Fprintln(t.out)
}

// ReadLine prints prompt and returns the next line without its newline.
// A final unterminated line is returned before io.EOF.
func (t *Terminal) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprintf(t.out, "%s> ", prompt)
	}
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Choose prints a numbered menu. Blank input or 0 cancels; anything else
// that is not a listed number asks again.
func (t *Terminal) Choose(title string, options []string) (int, bool, error) {
	fmt.Fprintf(t.out, "%s:\n", title)
	for i, o := range options {
		fmt.Fprintf(t.out, "  %d. %s\n", i+1, o)
	}
	fmt.Fprintln(t.out, "  0. Cancel")
	for {
		line, err := t.ReadLine(fmt.Sprintf("Select [1-%d]", len(options)))
		if err != nil {
			return 0, false, err
		}
		line = strings.TrimSpace(line)
		if line == "" || line == "0" {
			return 0, false, nil
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, true, nil
		}
		fmt.Fprintf(t.out, "✗ Invalid choice %q\n", line)
	}
}

// Confirm asks a yes/no question; blank input returns def.
func (t *Terminal) Confirm(question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		line, err := t.ReadLine(fmt.Sprintf("%s [%s]", question, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(t.out, "✗ Please answer y or n")
	}
}

// ReadSecret reads a value without echo when attached to a terminal.
// Input already sitting in the read buffer (a pasted block, say) was echoed
// on arrival, so it is consumed as a plain line to keep the order intact.
func (t *Terminal) ReadSecret(label string) (string, error) {
	if !t.interactive() || t.in.Buffered() > 0 {
		return t.ReadLine(label)
	}
	fmt.Fprintf(t.out, "%s> ", label)
	b, err := term.ReadPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(b), nil
}

// Ask reads a free-form answer; blank input returns def.
func (t *Terminal) Ask(label, def string) (string, error) {
	prompt := label
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]", label, def)
	}
	line, err := t.ReadLine(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) == "" {
		return def, nil
	}
	return strings.TrimSpace(line), nil
}

// Render prints one outcome.
func (t *Terminal) Render(o chat.Outcome) {
	switch o.Action {
	case chat.ActionReply:
		who := "Assistant"
		if o.Local {
			who = "TermChat"
		}
		fmt.Fprintf(t.out, "\n%s: %s\n\n", who, o.Text)
	case chat.ActionNotice, chat.ActionClear:
		fmt.Fprintf(t.out, "✓ %s\n", o.Text)
	case chat.ActionWarning:
		fmt.Fprintf(t.out, "⚠ %s\n", o.Text)
	case chat.ActionError:
		fmt.Fprintf(t.out, "✗ Error: %v\n", o.Err)
		if o.Hint != "" {
			fmt.Fprintf(t.out, "  %s\n", o.Hint)
		}
	case chat.ActionHelp:
		fmt.Fprintln(t.out, "Available commands:")
		w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
		for _, c := range o.Commands {
			fmt.Fprintf(w, "  %s\t%s\n", c.Name, c.Description)
		}
		_ = w.Flush()
		fmt.Fprintln(t.out, "Anything else is sent to the active provider.")
	case chat.ActionHistory:
		t.renderHistory(o)
	case chat.ActionJoke:
		fmt.Fprintf(t.out, "\n%s\n\n", o.Text)
	case chat.ActionExit:
		fmt.Fprintln(t.out, o.Text)
	}
}

func (t *Terminal) renderHistory(o chat.Outcome) {
	if len(o.Turns) == 0 {
		fmt.Fprintln(t.out, "No chat history yet.")
		return
	}
	fmt.Fprintln(t.out, "Chat history:")
	for i, turn := range o.Turns {
		who := "You"
		if turn.Role == ai.RoleAssistant {
			who = "Assistant"
		}
		text := strings.Join(strings.Fields(turn.Text), " ")
		fmt.Fprintf(t.out, "  %d. %s: %s\n", i+1, who, utils.Truncate(text, historyPreview))
	}
	fmt.Fprintf(t.out, "%d messages, ~%d tokens\n", len(o.Turns), o.Tokens)
}

// Reset clears the screen on an interactive terminal.
func (t *Terminal) Reset() {
	if t.interactive() {
		fmt.Fprint(t.out, "\033[H\033[2J")
	}
}
