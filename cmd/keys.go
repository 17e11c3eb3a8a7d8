package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/termchat-cli/internal/credential"
	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage saved provider API keys",
	Long: `Manage saved provider API keys without starting a chat.
Keys are added interactively with /addapi inside a chat session.`,
	Example: `  termchat keys list
  termchat keys use anthropic
  termchat keys remove OPENAI`,
}

// keysStore opens the credential store for the non-interactive commands.
func keysStore(cmd *cobra.Command) (*credential.Store, error) {
	c, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	return openStore(cmd, c, log)
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved API keys (masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := keysStore(cmd)
		if err != nil {
			return err
		}
		creds := store.Credentials()
		if len(creds) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no API keys saved; start termchat and use /addapi)")
			return nil
		}
		active, _ := store.Active()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACTIVE\tPROVIDER\tMODEL\tKEY\tBASE URL")
		for _, c := range creds {
			mark := ""
			if c.Provider == active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, c.Provider, c.Model, c.APIKey.Mask(), c.BaseURL)
		}
		return w.Flush()
	},
}

var keysUseCmd = &cobra.Command{
	Use:   "use <provider>",
	Short: "Make a saved provider the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := provider.ParseKind(args[0])
		if err != nil {
			return err
		}
		store, err := keysStore(cmd)
		if err != nil {
			return err
		}
		if err := store.SetActive(k); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Active provider is now %s\n", k)
		return nil
	},
}

var keysRemoveCmd = &cobra.Command{
	Use:     "remove <provider>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved API key",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := provider.ParseKind(args[0])
		if err != nil {
			return err
		}
		store, err := keysStore(cmd)
		if err != nil {
			return err
		}
		active, hasActive := store.Active()
		if err := store.Remove(k); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted the API key for %s\n", k)
		if hasActive && active == k {
			fmt.Fprintln(cmd.OutOrStdout(), "⚠ No provider is active now; run `termchat keys use <provider>`.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysListCmd, keysUseCmd, keysRemoveCmd)
}
