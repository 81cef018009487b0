package main

import (
	"context"
	"fmt"

	"famline/internal/callsession"

	"github.com/spf13/cobra"
)

var flagLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the group's recent ended calls",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum calls to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	callType := callsession.TypePhone
	if flagVideo {
		callType = callsession.TypeVideo
	}

	client, self, err := login(ctx)
	if err != nil {
		return err
	}

	calls, err := client.CallHistory(ctx, self.GroupID, callType, flagLimit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if len(calls) == 0 {
		fmt.Println("no ended calls")
		return nil
	}
	for _, sess := range calls {
		line := fmt.Sprintf("%s  %-6s %-6s %s",
			sess.CreatedAt.Local().Format("2006-01-02 15:04"),
			sess.Type, sess.Status,
			callsession.FormatDurationMs(sess.DurationMs))
		if sess.Recording != nil && sess.Recording.URL != "" && !sess.Recording.Hidden {
			line += "  [recorded]"
		}
		fmt.Println(line)
	}
	return nil
}
