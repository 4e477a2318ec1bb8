package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tsukumogami/wasmedgeup/internal/secrets"
	"github.com/tsukumogami/wasmedgeup/internal/userconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wasmedgeup configuration",
	Long: `Manage wasmedgeup configuration settings.

Configuration is stored in $WASMEDGEUP_HOME/config.toml.

Available settings:
  catalog_repo      GitHub repository providing release tags (owner/name)
  catalog_api_url   Override for the GitHub API endpoint (e.g. GitHub Enterprise)
  release_base_url  Override for the release download base URL
  fetch_retries     Extra attempts for transient download failures (0-10)
  lock_retries      Attempts to acquire the state lock before giving up (1-100)

Secrets are stored under secrets.<name>; environment variables take
precedence:
  secrets.github_token  GitHub token (GITHUB_TOKEN, GH_TOKEN)

Examples:
  wasmedgeup config get catalog_repo
  wasmedgeup config set fetch_retries 3`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]

		_, cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			exitWithCode(ExitGeneral)
		}

		value, ok := cfg.Get(key)
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
			fmt.Fprintf(os.Stderr, "\nAvailable keys:\n")
			printAvailableKeys()
			exitWithCode(ExitUsage)
		}

		fmt.Println(value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := args[1]

		paths, cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			exitWithCode(ExitGeneral)
		}

		if name, ok := strings.CutPrefix(strings.ToLower(key), userconfig.SecretPrefix); ok && !secrets.IsKnown(name) {
			fmt.Fprintf(os.Stderr, "Unknown secret: %s\n", name)
			fmt.Fprintf(os.Stderr, "\nAvailable keys:\n")
			printAvailableKeys()
			exitWithCode(ExitUsage)
		}

		if err := cfg.Set(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "\nAvailable keys:\n")
			printAvailableKeys()
			exitWithCode(ExitUsage)
		}

		if err := cfg.SaveFile(paths.ConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			exitWithCode(ExitGeneral)
		}

		if strings.HasPrefix(strings.ToLower(key), userconfig.SecretPrefix) {
			fmt.Printf("%s updated\n", key)
			return
		}
		stored, _ := cfg.Get(key)
		fmt.Printf("%s = %s\n", key, stored)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			exitWithCode(ExitGeneral)
		}
		for _, k := range userconfig.SortedKeys() {
			v, _ := cfg.Get(k)
			fmt.Printf("%s = %s\n", k, v)
		}
		for _, info := range secrets.KnownKeys() {
			state := "(not set)"
			if secrets.IsSet(cfg, info.Name) {
				state = "(set)"
			}
			fmt.Printf("%s%s = %s\n", userconfig.SecretPrefix, info.Name, state)
		}
	},
}

func printAvailableKeys() {
	keys := userconfig.AvailableKeys()
	for _, k := range userconfig.SortedKeys() {
		fmt.Fprintf(os.Stderr, "  %s - %s\n", k, keys[k])
	}
	for _, info := range secrets.KnownKeys() {
		fmt.Fprintf(os.Stderr, "  %s%s - %s\n", userconfig.SecretPrefix, info.Name, info.Desc)
	}
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
}
