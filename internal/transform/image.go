package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"media-sync/internal/logging"

	// Image format decoders for the fallback path
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decode support
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library. Call once at startup;
// govips cannot be restarted after Shutdown.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Route vips logs through our logger, filtered by the app level.
	vipsLogLevel := vips.LogLevelWarning
	if logging.GetLevel() == logging.LevelDebug {
		vipsLogLevel = vips.LogLevelInfo
	}
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level <= vips.LogLevelError:
			logging.Error("[%s] %s", domain, msg)
		case level == vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// Conservative memory settings; artifact generation is background
	// work and never needs more than one image in flight per worker.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// ResizeImage scales the image at srcPath down to targetWidth
// (preserving aspect ratio, never upscaling) and writes the result to
// destPath. With libvips the output is WebP; the pure-Go fallback
// writes JPEG bytes, which every consumer sniffs rather than trusting
// the extension.
func ResizeImage(srcPath, destPath string, targetWidth int) error {
	if IsVipsAvailable() {
		if err := resizeWithVips(srcPath, destPath, targetWidth); err == nil {
			return nil
		} else {
			logging.Warn("vips resize failed for %s, falling back: %v", filepath.Base(srcPath), err)
		}
	}
	return resizeWithImaging(srcPath, destPath, targetWidth)
}

func resizeWithVips(srcPath, destPath string, targetWidth int) error {
	ref, err := vips.LoadImageFromFile(srcPath, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return fmt.Errorf("vips autorotate: %w", err)
	}

	if ref.Width() > targetWidth {
		scale := float64(targetWidth) / float64(ref.Width())
		if err := ref.Resize(scale, vips.KernelLanczos3); err != nil {
			return fmt.Errorf("vips resize: %w", err)
		}
	}

	encoded, _, err := ref.ExportWebp(&vips.WebpExportParams{
		Quality:         82,
		StripMetadata:   true,
		ReductionEffort: 4,
	})
	if err != nil {
		return fmt.Errorf("vips export: %w", err)
	}
	if err := os.WriteFile(destPath, encoded, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	return nil
}

func resizeWithImaging(srcPath, destPath string, targetWidth int) error {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	if img.Bounds().Dx() > targetWidth {
		img = imaging.Resize(img, targetWidth, 0, imaging.Lanczos)
	}
	// imaging picks the encoder from the extension and has no WebP
	// encoder, so encode JPEG through a temporary name and rename
	// into place.
	tmp := destPath + ".jpg"
	if err := imaging.Save(img, tmp, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}
