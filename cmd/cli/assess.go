package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/glizzus/readaloud/internal/assessment"
	"github.com/glizzus/readaloud/internal/config"
	"github.com/glizzus/readaloud/internal/decode"
	"github.com/glizzus/readaloud/internal/mic"
	"github.com/glizzus/readaloud/internal/pipeline"
	"github.com/glizzus/readaloud/internal/upload"
	"github.com/urfave/cli/v2"
)

var assessCommand = &cli.Command{
	Name:  "assess",
	Usage: "Record and submit an answer for every reading question",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "user-id",
			Usage:    "identifier sent with every answer",
			EnvVars:  []string{"READALOUD_USER_ID"},
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		captureConfig, err := config.NewCaptureConfigFromEnv()
		if err != nil {
			return cli.Exit("Failed to load capture config: "+err.Error(), 1)
		}
		uploadConfig, err := config.NewUploadConfigFromEnv()
		if err != nil {
			return cli.Exit("Failed to load upload config: "+err.Error(), 1)
		}

		services, err := newStack(ctx)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer services.Close()

		opts := append(services.options, pipeline.WithStatusListener(func(status string) {
			fmt.Println("»", status)
		}))
		p, err := pipeline.New(
			c.String("user-id"),
			mic.NewFFmpegDeviceFromConfig(captureConfig),
			decode.NewFFmpegDecoder(captureConfig.FFmpegPath),
			upload.NewHTTPUploaderFromConfig(uploadConfig),
			opts...,
		)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer p.Close()

		// Release the microphone as soon as we are interrupted, even while
		// blocked on the terminal.
		go func() {
			<-ctx.Done()
			p.Close()
		}()

		if err := p.Open(ctx); err != nil {
			return cli.Exit(pipeline.StatusForError(err), 1)
		}

		a, err := assessment.New(p, assessment.DefaultQuestions, services.repo)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		if err := runAssessment(ctx, a); err != nil {
			if errors.Is(err, errQuit) || errors.Is(err, pipeline.ErrClosed) {
				fmt.Println("Stopped before the end of the assessment.")
				return nil
			}
			return cli.Exit(err.Error(), 1)
		}

		fmt.Println()
		for _, r := range a.Responses() {
			fmt.Printf("%d. %s\n   heard: %s\n", r.QuestionIndex+1, r.Question, r.Transcription)
		}
		return nil
	},
}

var errQuit = errors.New("quit")

func runAssessment(ctx context.Context, a *assessment.Assessment) error {
	for !a.Completed() {
		index, question, _ := a.Current()
		fmt.Printf("\nQuestion %d of %d:\n  %s\n", index+1, a.Len(), question)

		if answer := prompt("Press Enter to start recording (q to quit)"); answer == "q" {
			return errQuit
		}
		if _, err := a.Record(); err != nil {
			return err
		}
		prompt("Press Enter to stop")

		if _, err := a.Stop(); err != nil {
			if errors.Is(err, pipeline.ErrDiscarded) || errors.Is(err, pipeline.ErrClosed) {
				return pipeline.ErrClosed
			}
			// Too short or unreadable: the status says so, record again.
			slog.Debug("recording rejected", slog.Any("error", err))
			continue
		}

		if answer := prompt("Press Enter to upload, r to retake"); answer == "r" {
			if err := a.Retake(); err != nil {
				return err
			}
			continue
		}

		if err := uploadWithRetry(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// uploadWithRetry uploads the stopped recording. Retrying is up to the user.
func uploadWithRetry(ctx context.Context, a *assessment.Assessment) error {
	for {
		_, err := a.Upload(ctx)
		if err == nil {
			return nil
		}
		var uploadErr *upload.Error
		if !errors.As(err, &uploadErr) {
			if errors.Is(err, upload.ErrEmptyAudio) {
				return nil
			}
			return err
		}

		switch prompt("Upload failed. Enter to try again, r to retake, q to quit") {
		case "r":
			return a.Retake()
		case "q":
			return errQuit
		}
	}
}
