package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/termchat-cli/internal/ai"
	"github.com/KaramelBytes/termchat-cli/internal/chat"
	cfgpkg "github.com/KaramelBytes/termchat-cli/internal/config"
	"github.com/KaramelBytes/termchat-cli/internal/credential"
	"github.com/KaramelBytes/termchat-cli/internal/logging"
	"github.com/KaramelBytes/termchat-cli/internal/ui"
)

var (
	cfgFile            string
	debug              bool
	flagHTTPTimeoutSec int

	// Loaded configuration; nil when loading failed.
	cfg    *cfgpkg.Global
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "termchat",
	Short: "TermChat: chat with LLM providers from your terminal",
	Long: `TermChat is an interactive terminal chat client for hosted LLM providers
(Google Gemini, OpenRouter, OpenAI, Anthropic, xAI, DeepSeek, Qwen, HuggingFace).
API keys are kept in a local credential file; run without arguments to start chatting.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.termchat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
}

func loadConfig() {
	cfg, cfgErr = nil, nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		cfgErr = fmt.Errorf("load config: %w", err)
		return
	}
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		c.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if debug {
		c.LogLevel = "debug"
	}
	if err := cfgpkg.Validate(c); err != nil {
		cfgErr = err
		return
	}
	cfg = c
}

// loadedConfig returns the configuration or the reason it is unavailable.
func loadedConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, cfgErr
		}
		return nil, errors.New("no config loaded")
	}
	return cfg, nil
}

func newLogger(c *cfgpkg.Global) (*zap.Logger, error) {
	return logging.New(logging.Config{Level: c.LogLevel, Format: c.LogFormat})
}

// openStore loads the credential file. A corrupt file is reported and then
// treated as empty; the next save replaces it.
func openStore(cmd *cobra.Command, c *cfgpkg.Global, log *zap.Logger) (*credential.Store, error) {
	store := credential.NewFileStore(c.CredentialsFile, log)
	if err := store.Load(); err != nil {
		if !errors.Is(err, credential.ErrStoreCorrupt) {
			return nil, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s could not be read (%v); starting with no saved keys.\n", c.CredentialsFile, err)
	}
	return store, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := openStore(cmd, c, log)
	if err != nil {
		return err
	}
	client := ai.NewClient(c.Timeout(),
		ai.WithLogger(log),
		ai.WithMaxTokens(c.MaxTokens),
		ai.WithTemperature(c.Temperature),
	)
	term := ui.New(cmd.InOrStdin(), cmd.OutOrStdout())
	term.Welcome()

	d := chat.NewDispatcher(store, client, term,
		chat.WithCannedReplies(c.CannedReplies),
		chat.WithDispatcherLogger(log),
	)
	s := chat.NewSession(term, term, d, log)
	log.Debug("session started", zap.String("session", s.ID), zap.String("credentials", c.CredentialsFile))
	return s.Run(cmd.Context())
}
