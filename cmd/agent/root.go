package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"famline/internal/callclient"
	"famline/internal/group"

	"github.com/spf13/cobra"
)

var (
	flagServer   string
	flagUsername string
	flagPassword string
	flagVideo    bool
)

var rootCmd = &cobra.Command{
	Use:   "famline-agent",
	Short: "Headless famline call participant",
	Long:  `Joins, starts and records famline group calls from the terminal. Commands: call, history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:8080", "famline API base URL")
	rootCmd.PersistentFlags().StringVar(&flagUsername, "username", "", "member username")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "member password (prefer FAMLINE_PASSWORD)")
	rootCmd.PersistentFlags().BoolVar(&flagVideo, "video", false, "use video calls instead of phone calls")

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(historyCmd)
}

// login authenticates with the flags and returns the client and our own
// member record.
func login(ctx context.Context) (*callclient.Client, group.Member, error) {
	password := flagPassword
	if password == "" {
		password = envPassword()
	}
	if flagUsername == "" || password == "" {
		return nil, group.Member{}, fmt.Errorf("username and password are required")
	}

	c := callclient.New(flagServer)
	res, err := c.Login(ctx, flagUsername, password)
	if err != nil {
		return nil, group.Member{}, fmt.Errorf("login: %w", err)
	}
	return c, res.Member, nil
}

func envPassword() string { return os.Getenv("FAMLINE_PASSWORD") }

// wsBase derives the websocket endpoint from the API base URL.
func wsBase() string {
	switch {
	case strings.HasPrefix(flagServer, "https://"):
		return "wss://" + strings.TrimPrefix(flagServer, "https://")
	case strings.HasPrefix(flagServer, "http://"):
		return "ws://" + strings.TrimPrefix(flagServer, "http://")
	default:
		return flagServer
	}
}
