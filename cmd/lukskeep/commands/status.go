package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show open/mounted state of every configured device",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	orch, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}

	devices := orch.Devices()
	if len(devices) == 0 {
		fmt.Println("No devices configured")
		return nil
	}

	fmt.Printf("%-20s %-8s %-8s %-30s\n", "NAME", "OPEN", "MOUNTED", "MOUNT POINT")
	fmt.Println("--------------------------------------------------------------------")

	for _, dev := range devices {
		mountPoint := dev.MountPoint()
		if mountPoint == "" {
			mountPoint = "-"
		}
		fmt.Printf("%-20s %-8s %-8s %-30s\n",
			dev.Name(), yesNo(dev.IsOpen(ctx)), yesNo(dev.IsMounted(ctx)), mountPoint)
	}

	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
