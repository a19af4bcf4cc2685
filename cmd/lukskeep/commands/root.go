package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lukskeep",
	Short: "LUKS passphrase keeper, device mounter and snapshot tool",
	Long: `lukskeep manages the lifecycle of encrypted block devices: it keeps
their passphrases encrypted at rest, opens and mounts the configured devices
(firing user-defined lifecycle hooks around every transition), and optionally
prunes and creates btrfs snapshots of the first mounted filesystem.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31m❌ Error: %v\033[0m\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config.yaml (default: ~/.config/lukskeep/config.yaml)")
}
