package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/termchat-cli/internal/config"
)

const cannedPrefix = "canned_replies."

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set TermChat configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "credentials_file: %s\n", c.CredentialsFile)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
		fmt.Fprintf(out, "max_tokens: %d\n", c.MaxTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", c.Temperature)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		if len(c.CannedReplies) > 0 {
			keys := make([]string, 0, len(c.CannedReplies))
			for k := range c.CannedReplies {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintln(out, "canned_replies:")
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %s\n", k, c.CannedReplies[k])
			}
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk.

Keys: credentials_file, http_timeout_sec, max_tokens, temperature, log_level,
log_format, canned_replies.<input>. An empty canned reply removes the entry.`,
	Example: `  termchat config set http_timeout_sec 60
  termchat config set canned_replies.hello "Hi! How can I help?"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// Save the file's values, not flag overrides applied at start-up.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := applySetting(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func applySetting(c *cfgpkg.Global, key, val string) error {
	switch {
	case key == "credentials_file":
		c.CredentialsFile = val
	case key == "http_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for http_timeout_sec: %w", err)
		}
		c.HTTPTimeoutSec = i
	case key == "max_tokens":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for max_tokens: %w", err)
		}
		c.MaxTokens = i
	case key == "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for temperature: %w", err)
		}
		c.Temperature = f
	case key == "log_level":
		c.LogLevel = strings.ToLower(val)
	case key == "log_format":
		c.LogFormat = strings.ToLower(val)
	case strings.HasPrefix(key, cannedPrefix) && len(key) > len(cannedPrefix):
		input := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(key, cannedPrefix)))
		if strings.TrimSpace(val) == "" {
			delete(c.CannedReplies, input)
			return nil
		}
		if c.CannedReplies == nil {
			c.CannedReplies = make(map[string]string)
		}
		c.CannedReplies[input] = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
