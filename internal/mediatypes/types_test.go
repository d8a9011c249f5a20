package mediatypes

import "testing"

func TestGetMediaType(t *testing.T) {
	tests := []struct {
		filename string
		expected MediaType
	}{
		{"photo.jpg", MediaTypeImage},
		{"photo.JPG", MediaTypeImage},
		{"scan.tiff", MediaTypeImage},
		{"shot.CR2", MediaTypeImage},
		{"shot.dng", MediaTypeImage},
		{"clip.mp4", MediaTypeVideo},
		{"clip.MOV", MediaTypeVideo},
		{"holiday.mkv", MediaTypeVideo},
		{"notes.txt", MediaTypeUnknown},
		{"archive.zip", MediaTypeUnknown},
		{"noextension", MediaTypeUnknown},
		{"/photos/2024/img_0001.heic", MediaTypeImage},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := GetMediaType(tt.filename); got != tt.expected {
				t.Errorf("GetMediaType(%q) = %v, want %v", tt.filename, got, tt.expected)
			}
		})
	}
}

func TestIsRawImage(t *testing.T) {
	if !IsRawImage("shot.NEF") {
		t.Error("IsRawImage(shot.NEF) = false")
	}
	if IsRawImage("shot.jpg") {
		t.Error("IsRawImage(shot.jpg) = true")
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"a.jpg", "image/jpeg"},
		{"b.mp4", "video/mp4"},
		{"c.unknownext", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := GetMimeType(tt.filename); got != tt.expected {
			t.Errorf("GetMimeType(%q) = %q, want %q", tt.filename, got, tt.expected)
		}
	}
}

func TestIsMediaFile(t *testing.T) {
	if !IsMediaFile("x.webp") {
		t.Error("IsMediaFile(x.webp) = false")
	}
	if IsMediaFile("x.pdf") {
		t.Error("IsMediaFile(x.pdf) = true")
	}
}
