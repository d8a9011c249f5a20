package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"media-sync/internal/logging"
)

// ProbeWidth returns the pixel width of the first video stream,
// using ffprobe.
func ProbeWidth(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width",
		"-of", "csv=p=0",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	width, err := strconv.Atoi(strings.TrimSpace(stdout.String()))
	if err != nil {
		return 0, fmt.Errorf("parsing ffprobe width %q: %w", stdout.String(), err)
	}
	return width, nil
}

// TranscodePreview re-encodes a video into a web-playable H.264 MP4 at
// destPath, scaled down to maxWidth when the source is wider. Upscaling
// never happens.
func TranscodePreview(ctx context.Context, srcPath, destPath string, maxWidth int) error {
	args := []string{
		"-y",
		"-i", srcPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
	}

	srcWidth, err := ProbeWidth(ctx, srcPath)
	if err != nil {
		logging.Warn("could not probe %s, transcoding without scale: %v", srcPath, err)
		srcWidth = 0
	}
	if maxWidth > 0 && srcWidth > maxWidth {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", maxWidth))
	}

	args = append(args, "-f", "mp4", destPath)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Error("ffmpeg stderr: %s", stderr.String())
		return fmt.Errorf("transcoding error: %w", err)
	}
	return nil
}

// ExtractFrame grabs a single frame from early in the video and writes
// it as a JPEG to destPath. The frame then goes through ResizeImage to
// become a thumbnail.
func ExtractFrame(ctx context.Context, srcPath, destPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", "1",
		"-i", srcPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "image2",
		destPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Error("ffmpeg stderr: %s", stderr.String())
		return fmt.Errorf("frame extraction error: %w", err)
	}
	return nil
}
