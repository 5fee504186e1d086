package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/stashbot/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Stashbot Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. Telegram bot token
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token", cfg.Telegram.Token)

		// 2. Data directory
		cfg.DataDir = prompt(scanner, "Data directory", cfg.DataDir)

		// 3. Browse page size
		pageSizeStr := prompt(scanner, "Browse page size", strconv.Itoa(cfg.PageSize))
		if n, err := strconv.Atoi(pageSizeStr); err == nil && n > 0 {
			cfg.PageSize = n
		}

		// 4. Abandoned-flow TTL
		cfg.Janitor.PendingTTL = prompt(scanner, "Abandoned-flow TTL", cfg.Janitor.PendingTTL)

		// 5. Janitor schedule
		cfg.Janitor.Schedule = prompt(scanner, "Janitor cron schedule", cfg.Janitor.Schedule)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := scanner.Text()
		if input != "" {
			return input
		}
	}
	return defaultVal
}
