package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"media-sync/internal/backend"
	"media-sync/internal/logging"
	"media-sync/internal/mediatypes"
	"media-sync/internal/metrics"
	"media-sync/internal/model"
	"media-sync/internal/queue"
	"media-sync/internal/transform"
)

// Artifact file names inside a file's cache directory.
const (
	ThumbnailName    = "thumbnail.webp"
	PreviewImageName = "preview.webp"
	PreviewVideoName = "preview.mp4"
)

// Populator decides which derived artifacts each file is missing and
// queues their generation.
type Populator struct {
	queue       *queue.Queue
	cacheRoot   string
	scratchRoot string

	thumbnailWidth int
	previewWidth   int
	videoMaxWidth  int
}

// Options configures a Populator.
type Options struct {
	Queue          *queue.Queue
	CacheRoot      string
	ScratchRoot    string
	ThumbnailWidth int
	PreviewWidth   int
	VideoMaxWidth  int
}

// NewPopulator creates a populator writing artifacts under CacheRoot
// and working in per-task directories under ScratchRoot.
func NewPopulator(opts Options) *Populator {
	return &Populator{
		queue:          opts.Queue,
		cacheRoot:      opts.CacheRoot,
		scratchRoot:    opts.ScratchRoot,
		thumbnailWidth: opts.ThumbnailWidth,
		previewWidth:   opts.PreviewWidth,
		videoMaxWidth:  opts.VideoMaxWidth,
	}
}

// ArtifactDir returns the cache directory for a file, sharded by the
// first two id characters to keep directory fanout bounded.
func (p *Populator) ArtifactDir(accountID, fileID string) string {
	if len(fileID) < 2 {
		return filepath.Join(p.cacheRoot, accountID, fileID)
	}
	return filepath.Join(p.cacheRoot, accountID, fileID[0:1], fileID[1:2], fileID)
}

func (p *Populator) hasArtifact(file *model.File, name string) bool {
	_, err := os.Stat(filepath.Join(p.ArtifactDir(file.AccountID, file.ID), name))
	return err == nil
}

// Populate evaluates every file and queues generation tasks for the
// missing artifacts its media type and the backend capabilities allow.
// Running it twice against an unchanged file set queues nothing the
// second time: presence checks make it idempotent, and the queue merges
// duplicate keys for in-flight work.
func (p *Populator) Populate(ctx context.Context, client backend.Client, files []*model.File) {
	caps := client.Capabilities()

	for _, file := range files {
		mediaType := mediatypes.GetMediaType(file.Name)
		if mediaType == mediatypes.MediaTypeUnknown {
			continue
		}
		isImage := mediaType == mediatypes.MediaTypeImage
		isVideo := mediaType == mediatypes.MediaTypeVideo

		hasThumbnail := p.hasArtifact(file, ThumbnailName)
		hasPreviewImage := p.hasArtifact(file, PreviewImageName)
		hasPreviewVideo := p.hasArtifact(file, PreviewVideoName)

		thumbnailCapable := (isImage && caps.PhotoThumbnail) || (isVideo && caps.VideoThumbnail)

		if !hasThumbnail && thumbnailCapable {
			p.enqueueArtifact(file, "thumb", queue.PriorityNormal, "thumbnail",
				func(ctx context.Context, f *model.File) error {
					return p.thumbnailFromBackend(ctx, client, f)
				})
		}
		if isImage && !hasPreviewImage {
			p.enqueueArtifact(file, "preview", queue.PriorityNormal, "preview_image",
				func(ctx context.Context, f *model.File) error {
					return p.previewImageFromDownload(ctx, client, f)
				})
		}
		if isVideo && !hasPreviewVideo {
			p.enqueueArtifact(file, "video", queue.PriorityBatch, "preview_video",
				func(ctx context.Context, f *model.File) error {
					return p.previewVideoFromDownload(ctx, client, f)
				})
		}
		if isVideo && hasPreviewVideo && !hasThumbnail && !thumbnailCapable {
			p.enqueueArtifact(file, "thumb", queue.PriorityNormal, "thumbnail",
				func(ctx context.Context, f *model.File) error {
					return p.thumbnailFromPreviewVideo(ctx, f)
				})
		}
	}
}

// enqueueArtifact queues one generation task. The key carries an
// artifact suffix so different artifacts for the same file never merge
// into one another.
func (p *Populator) enqueueArtifact(file *model.File, suffix string, priority queue.Priority,
	artifact string, generate func(context.Context, *model.File) error) {
	p.queue.Enqueue(file.ID+":"+suffix, file.AccountID, priority, func(ctx context.Context) error {
		start := time.Now()
		err := generate(ctx, file)

		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.CacheArtifactsGenerated.WithLabelValues(artifact, status).Inc()
		metrics.CacheGenerationDuration.WithLabelValues(artifact).Observe(time.Since(start).Seconds())
		return err
	})
}

// scratchDir creates a unique working directory for one generation
// task. The caller must remove it on every exit path.
func (p *Populator) scratchDir() (string, error) {
	dir := filepath.Join(p.scratchRoot, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	return dir, nil
}

// install moves a finished artifact from the scratch dir into the
// file's cache directory.
func (p *Populator) install(file *model.File, srcPath, artifactName string) error {
	dir := p.ArtifactDir(file.AccountID, file.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	dest := filepath.Join(dir, artifactName)
	if err := os.Rename(srcPath, dest); err != nil {
		// Scratch and cache may live on different filesystems. Stream
		// the copy; video previews can run to hundreds of megabytes.
		if copyErr := copyFile(srcPath, dest); copyErr != nil {
			return fmt.Errorf("copying artifact: %w", copyErr)
		}
	}
	return nil
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(destPath)
		return err
	}
	return dest.Close()
}

// thumbnailFromBackend downloads the backend-native thumbnail and
// normalizes it into the cache.
func (p *Populator) thumbnailFromBackend(ctx context.Context, client backend.Client, file *model.File) error {
	scratch, err := p.scratchDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	if err := client.DownloadThumbnail(ctx, file, scratch, "source"); err != nil {
		return fmt.Errorf("downloading thumbnail for %s: %w", file.Name, err)
	}

	out := filepath.Join(scratch, ThumbnailName)
	if err := transform.ResizeImage(filepath.Join(scratch, "source"), out, p.thumbnailWidth); err != nil {
		return fmt.Errorf("resizing thumbnail for %s: %w", file.Name, err)
	}

	logging.Debug("cache: thumbnail generated for %s from backend", file.Name)
	return p.install(file, out, ThumbnailName)
}

// previewImageFromDownload downloads the original image and resizes it
// into the preview artifact.
func (p *Populator) previewImageFromDownload(ctx context.Context, client backend.Client, file *model.File) error {
	scratch, err := p.scratchDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	if err := client.DownloadFile(ctx, file, scratch, file.Name); err != nil {
		return fmt.Errorf("downloading %s: %w", file.Name, err)
	}

	out := filepath.Join(scratch, PreviewImageName)
	if err := transform.ResizeImage(filepath.Join(scratch, file.Name), out, p.previewWidth); err != nil {
		return fmt.Errorf("resizing preview for %s: %w", file.Name, err)
	}

	logging.Debug("cache: preview image generated for %s", file.Name)
	return p.install(file, out, PreviewImageName)
}

// previewVideoFromDownload downloads the original video and transcodes
// it into a web-playable preview clip.
func (p *Populator) previewVideoFromDownload(ctx context.Context, client backend.Client, file *model.File) error {
	scratch, err := p.scratchDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	if err := client.DownloadFile(ctx, file, scratch, file.Name); err != nil {
		return fmt.Errorf("downloading %s: %w", file.Name, err)
	}

	out := filepath.Join(scratch, PreviewVideoName)
	if err := transform.TranscodePreview(ctx, filepath.Join(scratch, file.Name), out, p.videoMaxWidth); err != nil {
		return fmt.Errorf("transcoding %s: %w", file.Name, err)
	}

	logging.Debug("cache: preview video generated for %s", file.Name)
	return p.install(file, out, PreviewVideoName)
}

// thumbnailFromPreviewVideo extracts a frame from the already-cached
// preview clip and resizes it into the thumbnail, avoiding a second
// full download.
func (p *Populator) thumbnailFromPreviewVideo(ctx context.Context, file *model.File) error {
	scratch, err := p.scratchDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	previewPath := filepath.Join(p.ArtifactDir(file.AccountID, file.ID), PreviewVideoName)
	frame := filepath.Join(scratch, "frame.jpg")
	if err := transform.ExtractFrame(ctx, previewPath, frame); err != nil {
		return fmt.Errorf("extracting frame for %s: %w", file.Name, err)
	}

	out := filepath.Join(scratch, ThumbnailName)
	if err := transform.ResizeImage(frame, out, p.thumbnailWidth); err != nil {
		return fmt.Errorf("resizing video thumbnail for %s: %w", file.Name, err)
	}

	logging.Debug("cache: thumbnail generated for %s from preview video", file.Name)
	return p.install(file, out, ThumbnailName)
}

// RebuildFile drops every cached artifact for a file so the next
// populate pass regenerates them from scratch.
func (p *Populator) RebuildFile(ctx context.Context, client backend.Client, file *model.File) {
	dir := p.ArtifactDir(file.AccountID, file.ID)
	if err := os.RemoveAll(dir); err != nil {
		logging.Warn("cache: cannot remove %s: %v", dir, err)
	}
	p.Populate(ctx, client, []*model.File{file})
}
