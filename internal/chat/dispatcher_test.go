package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/termchat-cli/internal/ai"
	"github.com/KaramelBytes/termchat-cli/internal/credential"
	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

func saved(s *credential.Store) []provider.Kind {
	var out []provider.Kind
	for k := range s.List() {
		out = append(out, k)
	}
	return out
}

func TestChatWithoutActiveProviderSendsNothing(t *testing.T) {
	f := newFixture(t)
	o := f.run("hello there")

	assert.Equal(t, ActionError, o.Action)
	assert.ErrorIs(t, o.Err, credential.ErrNoActiveProvider)
	assert.Contains(t, o.Hint, "/addapi")
	assert.Empty(t, f.sender.calls)
	assert.Zero(t, f.tr.Len())
}

func TestChatAppendsBothTurnsOnSuccess(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddOrUpdate(provider.OpenAI, credential.NewSecret("sk-test"), ""))
	require.NoError(t, f.store.SetActive(provider.OpenAI))

	o := f.run("  first question ")
	assert.Equal(t, ActionReply, o.Action)
	assert.Equal(t, "assistant reply", o.Text)

	f.sender.reply = "second reply"
	f.run("second question")

	require.Len(t, f.sender.calls, 2)
	assert.Equal(t, []ai.Message{
		{Role: ai.RoleUser, Content: "first question"},
		{Role: ai.RoleAssistant, Content: "assistant reply"},
		{Role: ai.RoleUser, Content: "second question"},
	}, f.sender.calls[1])
	assert.Equal(t, provider.OpenAI, f.sender.creds[1].Provider)
	assert.Equal(t, 4, f.tr.Len())
}

func TestChatProviderErrorKeepsUserTurnOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer srv.Close()

	b := credential.NewMemoryBackend(nil)
	store := credential.New(b, nil)
	require.NoError(t, store.AddOrUpdate(provider.OpenAI, credential.NewSecret("sk-test"), "", credential.WithBaseURL(srv.URL)))
	require.NoError(t, store.SetActive(provider.OpenAI))
	d := NewDispatcher(store, ai.NewClient(2*time.Second), &terminal{})
	tr := &Transcript{}

	o := d.Handle(context.Background(), tr, "hi")

	require.Equal(t, ActionError, o.Action)
	var aerr *ai.Error
	require.ErrorAs(t, o.Err, &aerr)
	assert.Equal(t, ai.ProviderError, aerr.Kind)
	assert.Equal(t, "invalid key", aerr.Detail)
	assert.NotEmpty(t, o.Hint)
	assert.Equal(t, []Turn{{Role: ai.RoleUser, Text: "hi"}}, tr.Turns())
}

func TestCannedReplyIsAnsweredLocally(t *testing.T) {
	f := newFixture(t, WithCannedReplies(map[string]string{"Hello": "Hi! How can I help?"}))
	o := f.run("  HELLO ")
	assert.Equal(t, ActionReply, o.Action)
	assert.True(t, o.Local)
	assert.Equal(t, "Hi! How can I help?", o.Text)
	assert.Empty(t, f.sender.calls)
	assert.Zero(t, f.tr.Len())
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	o := f.run("/frobnicate now")
	assert.Equal(t, ActionError, o.Action)
	assert.ErrorIs(t, o.Err, ErrUnknownCommand)
	assert.Contains(t, o.Err.Error(), "/frobnicate")
}

func TestBlankInputIsIgnored(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ActionNone, f.run("   ").Action)
	assert.Empty(t, f.sender.calls)
}

func TestSimpleCommands(t *testing.T) {
	f := newFixture(t)
	f.tr.Append(ai.RoleUser, "q")
	f.tr.Append(ai.RoleAssistant, "a")

	h := f.run("/history")
	assert.Equal(t, ActionHistory, h.Action)
	assert.Len(t, h.Turns, 2)
	assert.Equal(t, 2, h.Tokens)

	help := f.run("/HELP")
	assert.Equal(t, ActionHelp, help.Action)
	assert.Len(t, help.Commands, 8)

	joke := f.run("/joke")
	assert.Equal(t, ActionJoke, joke.Action)
	assert.True(t, slices.Contains(jokes, joke.Text))

	c := f.run("/clear")
	assert.Equal(t, ActionClear, c.Action)
	assert.Zero(t, f.tr.Len())

	assert.Equal(t, ActionExit, f.run("/exit").Action)
	assert.Equal(t, ActionExit, f.run("/quit").Action)
}

func TestAddAPIWithDefaultModelAndActivate(t *testing.T) {
	f := newFixture(t)
	// provider 3 = OpenAI, key, blank model, activate
	o := f.run("/addapi", "3", "sk-test", "", "y")

	assert.Equal(t, ActionNotice, o.Action, o.Text)
	assert.NotContains(t, o.Text, "sk-test")
	c, err := f.store.ActiveCredential()
	require.NoError(t, err)
	assert.Equal(t, provider.OpenAI, c.Provider)
	assert.Equal(t, "sk-test", c.APIKey.Reveal())
	assert.Equal(t, "gpt-3.5-turbo", c.Model)
}

func TestAddAPIWithoutActivating(t *testing.T) {
	f := newFixture(t)
	f.run("/addapi", "4", "ak-anthropic-key", "claude-3-haiku", "n")

	c, ok := f.store.Get(provider.Anthropic)
	require.True(t, ok)
	assert.Equal(t, "claude-3-haiku", c.Model)
	_, active := f.store.Active()
	assert.False(t, active)
}

func TestAddAPICancellations(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ActionWarning, f.run("/addapi", "0").Action)
	assert.Equal(t, ActionWarning, f.run("/addapi", "3", "   ").Action)
	assert.Equal(t, ActionWarning, f.run("/addapi", "3", "sk-x", "CANCEL").Action)
	assert.Zero(t, f.store.Len())
	assert.Zero(t, f.backend.Writes())
}

func TestAddAPIOverwriteNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddOrUpdate(provider.OpenAI, credential.NewSecret("sk-old"), ""))

	o := f.run("/addapi", "3", "n")
	assert.Equal(t, ActionWarning, o.Action)
	c, _ := f.store.Get(provider.OpenAI)
	assert.Equal(t, "sk-old", c.APIKey.Reveal())

	f.run("/addapi", "3", "y", "sk-new", "gpt-4o", "n")
	c, _ = f.store.Get(provider.OpenAI)
	assert.Equal(t, "sk-new", c.APIKey.Reveal())
	assert.Equal(t, "gpt-4o", c.Model)
	assert.Equal(t, 1, f.store.Len())
}

func TestSwitchThenDeleteOtherKeepsActive(t *testing.T) {
	f := newFixture(t)
	f.run("/addapi", "1", "g-key-123456", "", "n") // Google
	f.run("/addapi", "3", "sk-test", "", "y")      // OpenAI, active

	o := f.run("/switch", "1") // first listed: Google
	assert.Equal(t, ActionNotice, o.Action)

	o = f.run("/deleteapi", "2", "y") // second listed: OpenAI
	assert.Equal(t, ActionNotice, o.Action)

	k, ok := f.store.Active()
	require.True(t, ok)
	assert.Equal(t, provider.Google, k)
	assert.Equal(t, []provider.Kind{provider.Google}, saved(f.store))
}

func TestDeleteActiveLeavesNoActiveProvider(t *testing.T) {
	f := newFixture(t)
	f.run("/addapi", "3", "sk-test", "", "y")

	o := f.run("/deleteapi", "1", "y")
	assert.Equal(t, ActionWarning, o.Action)
	assert.Contains(t, o.Text, "/switch")

	o = f.run("hello")
	assert.ErrorIs(t, o.Err, credential.ErrNoActiveProvider)
	assert.Empty(t, f.sender.calls)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	f.run("/addapi", "3", "sk-test", "", "y")
	assert.Equal(t, ActionWarning, f.run("/deleteapi", "1", "n").Action)
	assert.Equal(t, 1, f.store.Len())
}

func TestSwitchAndDeleteOnEmptyStoreFailVisibly(t *testing.T) {
	f := newFixture(t)
	o := f.run("/switch")
	assert.Equal(t, ActionError, o.Action)
	assert.ErrorIs(t, o.Err, ErrNoCredentials)

	o = f.run("/deleteapi")
	assert.Equal(t, ActionError, o.Action)
	assert.ErrorIs(t, o.Err, ErrNoCredentials)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ActionWarning, f.d.Status().Action)

	require.NoError(t, f.store.AddOrUpdate(provider.DeepSeek, credential.NewSecret("ds-key"), ""))
	require.NoError(t, f.store.SetActive(provider.DeepSeek))
	s := f.d.Status()
	assert.Equal(t, ActionNotice, s.Action)
	assert.Contains(t, s.Text, "DeepSeek")
	assert.Contains(t, s.Text, "deepseek-chat")
}
