package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// framePosition is the fraction of the clip's duration the preview frame is
// sampled at. Early enough to skip leaders, late enough to show content.
const framePosition = 0.2

// fromVideo extracts a single frame at 20% of the clip's duration and
// encodes it as a JPEG thumbnail. The bytes are materialized to a scoped
// temporary file because ffprobe needs a seekable input; the file is removed
// on every exit path.
func (g *Generator) fromVideo(ctx context.Context, data []byte, ext string) ([]byte, string, string, error) {
	tmp, err := os.CreateTemp("", "thumb-*"+ext)
	if err != nil {
		return nil, "", "", fmt.Errorf("create temp video file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, "", "", fmt.Errorf("write temp video file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, "", "", fmt.Errorf("close temp video file: %w", err)
	}

	duration, err := g.probeDuration(ctx, tmp.Name())
	if err != nil {
		return nil, "", "", err
	}

	frame, err := g.extractFrame(ctx, tmp.Name(), duration*framePosition)
	if err != nil {
		return nil, "", "", err
	}

	thumb := imaging.Fit(frame, defaultBox, defaultBox, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, "", "", fmt.Errorf("encode video thumbnail: %w", err)
	}
	return buf.Bytes(), ".jpg", "image/jpeg", nil
}

// probeDuration asks ffprobe for the clip duration in seconds.
func (g *Generator) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, g.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// extractFrame decodes one frame at the given offset via ffmpeg, writing PNG
// to stdout so no second temp file is needed.
func (g *Generator) extractFrame(ctx context.Context, path string, offsetSec float64) (image.Image, error) {
	cmd := exec.CommandContext(ctx, g.FFmpegPath,
		"-ss", fmt.Sprintf("%.3f", offsetSec),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	frame, err := imaging.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame: %w", err)
	}
	return frame, nil
}
