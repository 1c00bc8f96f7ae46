package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/glizzus/readaloud/internal/config"
	"github.com/urfave/cli/v2"
)

var stdinReader = bufio.NewReader(os.Stdin)

func prompt(label string) string {
	fmt.Printf("%s: ", label)
	input, _ := stdinReader.ReadString('\n')
	return strings.TrimSpace(input)
}

func main() {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no .env file found, continuing without it")
		} else {
			slog.Error("failed to load .env file", slog.Any("error", err))
			os.Exit(1)
		}
	}

	app := &cli.App{
		Name:        "readaloud",
		Usage:       "record, convert and submit spoken-reading answers",
		Description: "Captures microphone audio through FFmpeg, converts it to 16-bit PCM WAV and uploads it for transcription.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
			return nil
		},
		Commands: []*cli.Command{
			assessCommand,
			transcodeCommand,
			probeCommand,
			inspectCommand,
			responsesCommand,
			eventsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("readaloud failed", slog.Any("error", err))
		os.Exit(1)
	}
}
