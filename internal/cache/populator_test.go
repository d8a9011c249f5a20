package cache

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"media-sync/internal/backend"
	"media-sync/internal/database"
	"media-sync/internal/model"
	"media-sync/internal/queue"
)

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func newTestPopulator(t *testing.T, q *queue.Queue) *Populator {
	t.Helper()
	return NewPopulator(Options{
		Queue:          q,
		CacheRoot:      t.TempDir(),
		ScratchRoot:    t.TempDir(),
		ThumbnailWidth: 120,
		PreviewWidth:   400,
		VideoMaxWidth:  640,
	})
}

// drain waits for the queue to finish every task.
func drain(t *testing.T, q *queue.Queue) {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for {
		active, waiting := q.Counts()
		if active == 0 && waiting == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue did not drain: active=%d waiting=%d", active, waiting)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func listFiles(t *testing.T, client *backend.MemoryClient, folderPath string) []*model.File {
	t.Helper()
	ctx := context.Background()
	folder, err := client.GetFolderByPath(ctx, folderPath)
	if err != nil {
		t.Fatalf("GetFolderByPath(%s) error: %v", folderPath, err)
	}
	files, err := client.ListFiles(ctx, folder)
	if err != nil {
		t.Fatalf("ListFiles(%s) error: %v", folderPath, err)
	}
	return files
}

func TestPopulateRespectsCapabilityGate(t *testing.T) {
	q := queue.New(2)
	defer q.Close()
	p := newTestPopulator(t, q)

	// No thumbnail capability: an image gets a preview but no thumbnail.
	client := backend.NewMemoryClient("acc", model.Capabilities{})
	client.PutFile("/", "x.jpg", testJPEG(t, 800, 600), time.Now())
	files := listFiles(t, client, "/")

	p.Populate(context.Background(), client, files)
	drain(t, q)

	dir := p.ArtifactDir("acc", files[0].ID)
	if _, err := os.Stat(filepath.Join(dir, PreviewImageName)); err != nil {
		t.Errorf("preview image missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ThumbnailName)); !os.IsNotExist(err) {
		t.Errorf("thumbnail should not exist without the capability, stat err = %v", err)
	}
}

func TestPopulateUsesBackendThumbnail(t *testing.T) {
	q := queue.New(2)
	defer q.Close()
	p := newTestPopulator(t, q)

	client := backend.NewMemoryClient("acc", model.Capabilities{PhotoThumbnail: true})
	client.PutFile("/", "x.jpg", testJPEG(t, 800, 600), time.Now())
	client.PutArtifact("thumbnail", "/", "x.jpg", testJPEG(t, 200, 150))
	files := listFiles(t, client, "/")

	p.Populate(context.Background(), client, files)
	drain(t, q)

	dir := p.ArtifactDir("acc", files[0].ID)
	for _, name := range []string{ThumbnailName, PreviewImageName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestPopulateIsIdempotent(t *testing.T) {
	q := queue.New(2)
	defer q.Close()
	p := newTestPopulator(t, q)

	client := backend.NewMemoryClient("acc", model.Capabilities{PhotoThumbnail: true})
	client.PutFile("/", "x.jpg", testJPEG(t, 800, 600), time.Now())
	client.PutArtifact("thumbnail", "/", "x.jpg", testJPEG(t, 200, 150))
	files := listFiles(t, client, "/")

	p.Populate(context.Background(), client, files)
	drain(t, q)

	// All artifacts exist, so a second pass queues nothing.
	p.Populate(context.Background(), client, files)
	if active, waiting := q.Counts(); active != 0 || waiting != 0 {
		t.Errorf("second pass queued work: active=%d waiting=%d", active, waiting)
	}
}

func TestPopulateSkipsUnknownTypes(t *testing.T) {
	q := queue.New(2)
	defer q.Close()
	p := newTestPopulator(t, q)

	client := backend.NewMemoryClient("acc", model.Capabilities{PhotoThumbnail: true})
	folder, err := client.GetFolderByPath(context.Background(), "/")
	if err != nil {
		t.Fatalf("GetFolderByPath error: %v", err)
	}
	file := &model.File{
		ID:        model.FileID("acc", folder.ID, "notes.txt"),
		AccountID: "acc",
		FolderID:  folder.ID,
		Name:      "notes.txt",
	}

	p.Populate(context.Background(), client, []*model.File{file})
	if active, waiting := q.Counts(); active != 0 || waiting != 0 {
		t.Errorf("unknown type queued work: active=%d waiting=%d", active, waiting)
	}
}

func TestVideoThumbnailFromPreview(t *testing.T) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available in test environment", bin)
		}
	}

	q := queue.New(2)
	defer q.Close()
	p := newTestPopulator(t, q)

	client := backend.NewMemoryClient("acc", model.Capabilities{})
	client.PutFile("/", "clip.mp4", []byte("placeholder"), time.Now())
	files := listFiles(t, client, "/")

	// Pre-seed the preview clip so only the thumbnail row fires.
	dir := p.ArtifactDir("acc", files[0].ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir cache dir: %v", err)
	}
	render := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=320x240:rate=10",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		filepath.Join(dir, PreviewVideoName),
	)
	if output, err := render.CombinedOutput(); err != nil {
		t.Skipf("cannot render test video: %v (%s)", err, output)
	}

	p.Populate(context.Background(), client, files)
	drain(t, q)

	if _, err := os.Stat(filepath.Join(dir, ThumbnailName)); err != nil {
		t.Errorf("video thumbnail missing: %v", err)
	}
}

func TestCleanAccountRemovesOrphans(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	q := queue.New(2)
	defer q.Close()
	p := newTestPopulator(t, q)

	keptID := model.FileID("acc", "folder", "kept.jpg")
	orphanID := model.FileID("acc", "folder", "orphan.jpg")

	if err := db.UpsertFile(ctx, &model.File{
		ID:        keptID,
		AccountID: "acc",
		FolderID:  "folder",
		Name:      "kept.jpg",
	}); err != nil {
		t.Fatalf("UpsertFile error: %v", err)
	}

	for _, id := range []string{keptID, orphanID} {
		dir := p.ArtifactDir("acc", id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
		if err := os.WriteFile(filepath.Join(dir, ThumbnailName), []byte("webp"), 0o644); err != nil {
			t.Fatalf("writing artifact: %v", err)
		}
	}

	if err := p.CleanAccount(ctx, db, "acc"); err != nil {
		t.Fatalf("CleanAccount error: %v", err)
	}

	if _, err := os.Stat(p.ArtifactDir("acc", keptID)); err != nil {
		t.Errorf("kept artifact dir removed: %v", err)
	}
	if _, err := os.Stat(p.ArtifactDir("acc", orphanID)); !os.IsNotExist(err) {
		t.Errorf("orphan artifact dir still present, stat err = %v", err)
	}
}

func TestCopyFileStreamsContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dest := filepath.Join(dir, "dest.mp4")

	content := bytes.Repeat([]byte("frame"), 64*1024)
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatalf("writing source: %v", err)
	}

	if err := copyFile(src, dest); err != nil {
		t.Fatalf("copyFile error: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading copy: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("copy differs from source: %d bytes, want %d", len(got), len(content))
	}

	if err := copyFile(filepath.Join(dir, "missing"), dest); err == nil {
		t.Error("copyFile(missing source) did not fail")
	}
}
