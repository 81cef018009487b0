// The famline agent is a headless call participant: it joins or starts a
// group call, keeps the lifecycle in sync with the backend, and can record
// the call and upload the result when the call ends.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("agent failed", "err", err)
		os.Exit(1)
	}
}
