package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/deckhand/internal/state"
	"github.com/user/deckhand/internal/types"
)

func init() {
	conversationsTailCmd.Flags().Int("limit", 20, "maximum entries to show")
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd, conversationsTailCmd)
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Inspect conversation transcripts",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations with a transcript",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		transcript := state.NewLog(cfg.DataDir)

		keys, err := transcript.Keys()
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}

		if len(keys) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tLAST ACTION\tLAST SEEN")
		for _, key := range keys {
			recs, err := transcript.Tail(key, 1)
			if err != nil || len(recs) == 0 {
				fmt.Fprintf(w, "%s\t-\t-\n", key)
				continue
			}
			last := recs[len(recs)-1]
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				key,
				last.Action,
				last.At.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var conversationsTailCmd = &cobra.Command{
	Use:   "tail <key>",
	Short: "Show the last entries of a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		transcript := state.NewLog(cfg.DataDir)

		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		recs, err := transcript.Tail(types.SessionKey(args[0]), limit)
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		if len(recs) == 0 {
			fmt.Println("No transcript entries found.")
			return nil
		}

		for _, rec := range recs {
			line := fmt.Sprintf("%s  %-10s", rec.At.Format("2006-01-02 15:04:05"), rec.Action)
			if rec.Text != "" {
				line += "  " + rec.Text
			}
			if rec.Detail != "" {
				line += "  (" + rec.Detail + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}
