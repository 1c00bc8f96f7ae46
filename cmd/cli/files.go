package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/glizzus/readaloud/internal/decode"
	"github.com/glizzus/readaloud/internal/wav"
	"github.com/urfave/cli/v2"
)

var ffmpegFlag = &cli.StringFlag{
	Name:    "ffmpeg",
	Usage:   "path to the ffmpeg binary",
	Value:   "ffmpeg",
	EnvVars: []string{"FFMPEG_PATH"},
}

var transcodeCommand = &cli.Command{
	Name:  "transcode",
	Usage: "Convert an Ogg/Opus capture to a 16-bit PCM WAV file",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Usage: "Ogg/Opus capture to read", Required: true},
		&cli.StringFlag{Name: "out", Usage: "WAV file to write", Required: true},
		ffmpegFlag,
	},
	Action: func(c *cli.Context) error {
		blob, err := os.ReadFile(c.String("in"))
		if err != nil {
			return cli.Exit("Failed to read capture: "+err.Error(), 1)
		}

		audio, err := decode.NewFFmpegDecoder(c.String("ffmpeg")).Decode(c.Context, blob)
		if err != nil {
			msg := err.Error()
			if cause := errors.Unwrap(err); cause != nil {
				msg += ": " + cause.Error()
			}
			return cli.Exit(msg, 1)
		}
		container, err := wav.Encode(audio)
		if err != nil {
			return cli.Exit("Failed to encode WAV: "+err.Error(), 1)
		}
		if err := os.WriteFile(c.String("out"), container, 0o644); err != nil {
			return cli.Exit("Failed to write WAV: "+err.Error(), 1)
		}

		fmt.Printf("Wrote %s: %d channel(s), %d Hz, %s, %d bytes\n",
			c.String("out"), audio.NumChannels(), audio.SampleRate, audio.Duration(), len(container))
		return nil
	},
}

var probeCommand = &cli.Command{
	Name:  "probe",
	Usage: "Show the Opus header of an Ogg/Opus capture",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Usage: "Ogg/Opus capture to read", Required: true},
	},
	Action: func(c *cli.Context) error {
		blob, err := os.ReadFile(c.String("in"))
		if err != nil {
			return cli.Exit("Failed to read capture: "+err.Error(), 1)
		}
		info, err := decode.Probe(blob)
		if err != nil {
			return cli.Exit("Not an Ogg/Opus capture: "+err.Error(), 1)
		}

		fmt.Printf("version:           %d\n", info.Version)
		fmt.Printf("channels:          %d\n", info.Channels)
		fmt.Printf("pre-skip:          %d samples\n", info.PreSkip)
		fmt.Printf("input sample rate: %d Hz\n", info.InputSampleRate)
		fmt.Printf("mapping family:    %d\n", info.MappingFamily)
		return nil
	},
}

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Validate a WAV file and show its header",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Usage: "WAV file to read", Required: true},
	},
	Action: func(c *cli.Context) error {
		data, err := os.ReadFile(c.String("in"))
		if err != nil {
			return cli.Exit("Failed to read WAV: "+err.Error(), 1)
		}
		h, err := wav.ParseHeader(data)
		if err != nil {
			return cli.Exit("Invalid WAV: "+err.Error(), 1)
		}

		fmt.Printf("channels:        %d\n", h.NumChannels)
		fmt.Printf("sample rate:     %d Hz\n", h.SampleRate)
		fmt.Printf("byte rate:       %d\n", h.ByteRate)
		fmt.Printf("block align:     %d\n", h.BlockAlign)
		fmt.Printf("bits per sample: %d\n", h.BitsPerSample)
		fmt.Printf("data size:       %d bytes\n", h.DataSize)
		fmt.Printf("frames:          %d\n", h.Frames())
		fmt.Printf("duration:        %s\n", h.Duration())
		return nil
	},
}

