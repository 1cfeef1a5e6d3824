package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/noveltoon/backend/internal/logger"
)

// ExecError carries the tool's combined output so failures are diagnosable
// without rerunning by hand.
type ExecError struct {
	Bin      string
	Args     []string
	Output   string
	TimedOut bool
	Err      error
}

func (e *ExecError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 800 {
		out = "..." + out[len(out)-800:]
	}
	if e.TimedOut {
		return fmt.Sprintf("%s timed out: %s", e.Bin, out)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Bin, e.Err, out)
}

func (e *ExecError) Unwrap() error { return e.Err }

// IsTimeout reports whether the chain contains a timed-out tool run.
func IsTimeout(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee) && ee.TimedOut
}

type Config struct {
	FFmpegPath   string
	FFprobePath  string
	Timeout      time.Duration
	VideoCodec   string
	Preset       string
	AudioCodec   string
	AudioBitrate string
}

// Tools shells out to ffmpeg/ffprobe with a per-call timeout. Stateless and
// safe for concurrent use.
type Tools struct {
	cfg Config
	log *logger.Logger
}

func NewTools(cfg Config, log *logger.Logger) *Tools {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = "libx264"
	}
	if cfg.Preset == "" {
		cfg.Preset = "medium"
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = "aac"
	}
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = "192k"
	}
	return &Tools{cfg: cfg, log: log.With("service", "media_tools")}
}

// AssertReady verifies both binaries respond; called once at boot.
func (t *Tools) AssertReady(ctx context.Context) error {
	if _, err := t.run(ctx, t.cfg.FFmpegPath, []string{"-version"}); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	if _, err := t.run(ctx, t.cfg.FFprobePath, []string{"-version"}); err != nil {
		return fmt.Errorf("ffprobe not available: %w", err)
	}
	return nil
}

// MuxStill loops a still image over an audio track into a scene clip.
// Fixed codec settings keep all clips concat-compatible.
func (t *Tools) MuxStill(ctx context.Context, imagePath, audioPath string, duration float64, outPath string) error {
	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", t.cfg.VideoCodec,
		"-preset", t.cfg.Preset,
		"-tune", "stillimage",
		"-c:a", t.cfg.AudioCodec,
		"-b:a", t.cfg.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-t", formatSeconds(duration),
		outPath,
	}
	_, err := t.run(ctx, t.cfg.FFmpegPath, args)
	return err
}

// Concat stream-copies the inputs named in a concat-demuxer list file.
func (t *Tools) Concat(ctx context.Context, listPath, outPath string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
	_, err := t.run(ctx, t.cfg.FFmpegPath, args)
	return err
}

// SilentAudio renders a silent mp3 track for scenes with no speech.
func (t *Tools) SilentAudio(ctx context.Context, seconds float64, outPath string) error {
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-t", formatSeconds(seconds),
		"-q:a", "9",
		outPath,
	}
	_, err := t.run(ctx, t.cfg.FFmpegPath, args)
	return err
}

// ProbeDuration reads a media file's duration in seconds.
func (t *Tools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	out, err := t.run(ctx, t.cfg.FFprobePath, args)
	if err != nil {
		return 0, err
	}
	dur, parseErr := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if parseErr != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), parseErr)
	}
	return dur, nil
}

// ConcatList renders the concat-demuxer input file: one `file '<path>'`
// line per input, single quotes escaped for the quote wrapper.
func ConcatList(paths []string) []byte {
	var b strings.Builder
	for _, p := range paths {
		escaped := strings.ReplaceAll(p, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return []byte(b.String())
}

func (t *Tools) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		timedOut := runCtx.Err() == context.DeadlineExceeded
		t.log.Error("Media tool failed",
			"bin", bin, "args", strings.Join(args, " "), "timed_out", timedOut, "error", err)
		return out, &ExecError{Bin: bin, Args: args, Output: string(out), TimedOut: timedOut, Err: err}
	}
	return out, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
