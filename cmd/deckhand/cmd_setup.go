package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/deckhand/internal/config"
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

		fmt.Println("Deckhand Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		// 1. SlideSpeak API key
		cfg.Generator.APIKey = prompt(scanner, "SlideSpeak API key", cfg.Generator.APIKey)

		// 2. Presentation template
		cfg.Generator.Template = prompt(scanner, "Presentation template", cfg.Generator.Template)

		// 3. Slide count
		slidesStr := prompt(scanner, "Slides per presentation", strconv.Itoa(cfg.Generator.Slides))
		if n, err := strconv.Atoi(slidesStr); err == nil {
			cfg.Generator.Slides = n
		}

		// 4. Slack bot token (optional)
		cfg.Slack.BotToken = prompt(scanner, "Slack bot token (optional)", cfg.Slack.BotToken)

		// 5. Telegram bot token (optional)
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		// 6. HTTP listen address
		cfg.HTTP.Listen = prompt(scanner, "HTTP listen address", cfg.HTTP.Listen)

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
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
