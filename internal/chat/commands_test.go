package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		cmd  Command
		name string
		ok   bool
	}{
		{"/help", CmdHelp, "/help", true},
		{"  /AddAPI extra args", CmdAddAPI, "/addapi", true},
		{"/quit", CmdExit, "/quit", true},
		{"/deleteapi", CmdDeleteAPI, "/deleteapi", true},
		{"/unknown", "", "/unknown", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		cmd, name, ok := ParseCommand(tc.in)
		assert.Equal(t, tc.cmd, cmd, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
	assert.True(t, IsCommand(" /x"))
	assert.False(t, IsCommand("hello /x"))
}
