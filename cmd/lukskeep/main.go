package main

import (
	"log/slog"
	"os"

	"github.com/lukskeep/lukskeep/cmd/lukskeep/commands"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
