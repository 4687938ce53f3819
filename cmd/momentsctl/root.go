package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/moments-api/internal/bootstrap"
	"github.com/maauso/moments-api/internal/compose"
	"github.com/maauso/moments-api/internal/storage"
)

// cli holds the flags shared by every command.
type cli struct {
	ffmpegPath  string
	ffprobePath string
	logLevel    string
	lookPath    compose.LookPathFunc
	toolchain   compose.ToolchainFactory
}

func (c *cli) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *cli) compositor(store compose.TempStore, opts ...compose.Option) *compose.Compositor {
	if c.lookPath != nil {
		opts = append(opts, compose.WithLookPath(c.lookPath))
	}
	if c.toolchain != nil {
		opts = append(opts, compose.WithToolchain(c.toolchain))
	}
	return bootstrap.NewCompositor(c.ffmpegPath, c.ffprobePath, store, c.logger(), opts...)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "momentsctl",
		Short:         "Compose narrated moments into videos",
		Long:          "momentsctl runs the media compositor locally: a still image held for the length of a narration clip, recorded into one video file.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.ffmpegPath, "ffmpeg", os.Getenv("FFMPEG_PATH"), "Path to the ffmpeg binary (default: PATH lookup)")
	root.PersistentFlags().StringVar(&c.ffprobePath, "ffprobe", os.Getenv("FFPROBE_PATH"), "Path to the ffprobe binary (default: PATH lookup)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newComposeCmd(c), newProbeCmd(c))
	return root
}

func newComposeCmd(c *cli) *cobra.Command {
	var (
		image   string
		audio   string
		prompt  string
		outDir  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose an image and a narration clip into a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir %s: %w", outDir, err)
			}

			tempDir, err := os.MkdirTemp("", "momentsctl-")
			if err != nil {
				return fmt.Errorf("create temp dir: %w", err)
			}
			defer os.RemoveAll(tempDir)

			store, err := storage.NewLocalStorage(tempDir)
			if err != nil {
				return err
			}
			compositor := c.compositor(store,
				compose.WithFetcher(compose.NewFetcher(compose.WithLocalFiles())),
				compose.WithStateObserver(func(s compose.State) {
					c.logger().Debug("state", slog.String("state", string(s)))
				}),
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			file, err := compositor.Compose(ctx, compose.Source{
				ID:       "cli",
				Prompt:   prompt,
				ImageURL: image,
				AudioURL: audio,
			})
			if err != nil {
				return err
			}
			if file == nil {
				return fmt.Errorf("nothing to compose without audio")
			}

			out := filepath.Join(outDir, file.Name)
			if err := os.WriteFile(out, file.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Video saved at: %s (%s, %d bytes)\n", out, file.MIMEType, file.Size())
			return nil
		},
		Example: `momentsctl compose \
  --image still.png \
  --audio narration.mp3 \
  --prompt "A lighthouse at dusk" \
  --out-dir videos`,
	}

	cmd.Flags().StringVar(&image, "image", "", "Image path, file://, http(s) or data URL (required)")
	cmd.Flags().StringVar(&audio, "audio", "", "Audio path, file://, http(s) or data URL (required)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt used to name the output file")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "Directory to write the video to")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum composition time")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func newProbeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report whether audio capture is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			capability := c.compositor(nil).Probe()
			if !capability.Supported() {
				fmt.Fprintf(cmd.OutOrStdout(), "unsupported (tried %s)\n", strings.Join(capability.Tried, ", "))
				return capability.Err()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "supported: %s\n", capability.Binary)
			return nil
		},
	}
}
