package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrTransform marks input ffmpeg cannot convert. It is permanent:
// retrying the same bytes fails the same way.
var ErrTransform = errors.New("audio extraction failed")

// CommandRunner defines the interface for running external commands
// This allows mocking exec.Command in tests
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner is the production implementation using os/exec
type ExecCommandRunner struct{}

func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (r *ExecCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// AudioExtractor pulls the audio track out of a video with ffmpeg.
type AudioExtractor struct {
	ffmpegPath string
	bitrate    string
	runner     CommandRunner
}

type Option func(*AudioExtractor)

func WithFFmpegPath(path string) Option {
	return func(e *AudioExtractor) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

func WithBitrate(bitrate string) Option {
	return func(e *AudioExtractor) {
		if bitrate != "" {
			e.bitrate = bitrate
		}
	}
}

func WithCommandRunner(runner CommandRunner) Option {
	return func(e *AudioExtractor) {
		e.runner = runner
	}
}

func New(opts ...Option) *AudioExtractor {
	e := &AudioExtractor{
		ffmpegPath: "ffmpeg",
		bitrate:    "192k",
		runner:     &ExecCommandRunner{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes the video into a per-call temp dir, runs ffmpeg over it,
// and reads the mp3 back. The temp dir is removed on every exit path.
func (e *AudioExtractor) Extract(ctx context.Context, video []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "mp4-2-mp3-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input.mp4")
	out := filepath.Join(dir, "output.mp3")

	if err := os.WriteFile(in, video, 0o600); err != nil {
		return nil, fmt.Errorf("write source video: %w", err)
	}

	args := []string{
		"-i", in,
		"-vn",                   // No video
		"-acodec", "libmp3lame", // MP3 codec
		"-ab", e.bitrate,        // Audio bitrate
		"-y",                    // Overwrite output file if it exists
		out,
	}
	if err := e.runner.Run(ctx, e.ffmpegPath, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg: %v: %w", err, ErrTransform)
	}

	audio, err := os.ReadFile(out)
	if err != nil {
		// ffmpeg exited zero but wrote nothing usable
		return nil, fmt.Errorf("read extracted audio: %v: %w", err, ErrTransform)
	}
	return audio, nil
}

// VerifyInstalled checks that ffmpeg is available
func (e *AudioExtractor) VerifyInstalled(ctx context.Context) error {
	if _, err := e.runner.Output(ctx, e.ffmpegPath, "-version"); err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}
