package chat

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// ErrUnknownCommand is reported for slash input outside the vocabulary.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a slash command name without the slash.
type Command string

const (
	CmdHelp      Command = "help"
	CmdExit      Command = "exit"
	CmdClear     Command = "clear"
	CmdJoke      Command = "joke"
	CmdHistory   Command = "history"
	CmdAddAPI    Command = "addapi"
	CmdSwitch    Command = "switch"
	CmdDeleteAPI Command = "deleteapi"
)

// CommandInfo describes a command for help output.
type CommandInfo struct {
	Name        string
	Description string
}

var commandHelp = []CommandInfo{
	{"/help", "Show this help message"},
	{"/exit", "Exit the chat (also /quit)"},
	{"/clear", "Clear the chat history and screen"},
	{"/joke", "Tell a random programming joke"},
	{"/history", "Show your chat history"},
	{"/addapi", "Add or replace an LLM provider API key"},
	{"/switch", "Switch the active LLM provider"},
	{"/deleteapi", "Delete a saved API key"},
}

var aliases = map[string]Command{"quit": CmdExit}

// IsCommand reports whether a line is slash input.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// ParseCommand extracts the command from slash input. Arguments after the
// first word are ignored. ok is false for names outside the vocabulary; name
// is returned either way for error reporting.
func ParseCommand(line string) (cmd Command, name string, ok bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return "", "", false
	}
	name = strings.ToLower(fields[0])
	word := strings.TrimPrefix(name, "/")
	if a, found := aliases[word]; found {
		return a, name, true
	}
	switch c := Command(word); c {
	case CmdHelp, CmdExit, CmdClear, CmdJoke, CmdHistory, CmdAddAPI, CmdSwitch, CmdDeleteAPI:
		return c, name, true
	}
	return "", name, false
}

var jokes = []string{
	"Why do programmers prefer dark mode? Because light attracts bugs.",
	"There are 10 kinds of people: those who understand binary and those who don't.",
	"A SQL query walks into a bar, walks up to two tables and asks: can I join you?",
	"It works on my machine. Then we'll ship your machine.",
	"Why did the developer go broke? Because they used up all their cache.",
	"How many programmers does it take to change a light bulb? None, that's a hardware problem.",
	"Why do Go programmers never get lost? They always know where they defer to.",
}

func randomJoke() string { return jokes[rand.IntN(len(jokes))] }
