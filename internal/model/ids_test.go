package model

import "testing"

func TestFileIDDeterministic(t *testing.T) {
	a := FileID("acc1", "folder1", "photo.jpg")
	b := FileID("acc1", "folder1", "photo.jpg")
	if a != b {
		t.Errorf("FileID not deterministic: %q != %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("FileID length = %d, want 32 hex chars", len(a))
	}
}

func TestFileIDChangesWithLocation(t *testing.T) {
	base := FileID("acc1", "folder1", "photo.jpg")

	if got := FileID("acc2", "folder1", "photo.jpg"); got == base {
		t.Error("FileID should change with account")
	}
	if got := FileID("acc1", "folder2", "photo.jpg"); got == base {
		t.Error("FileID should change with folder (move is delete+add)")
	}
	if got := FileID("acc1", "folder1", "other.jpg"); got == base {
		t.Error("FileID should change with filename")
	}
}

func TestCleanFolderPath(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"photos", "/photos"},
		{"/photos/", "/photos"},
		{"//photos//2024", "/photos/2024"},
		{"photos\\2024", "/photos/2024"},
		{"/a/./b", "/a/b"},
	}

	for _, tt := range tests {
		if got := CleanFolderPath(tt.in); got != tt.expected {
			t.Errorf("CleanFolderPath(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestChildAndParentPath(t *testing.T) {
	if got := ChildPath("/", "photos"); got != "/photos" {
		t.Errorf("ChildPath(/, photos) = %q", got)
	}
	if got := ChildPath("/photos", "2024"); got != "/photos/2024" {
		t.Errorf("ChildPath(/photos, 2024) = %q", got)
	}
	if got := ParentPath("/photos/2024"); got != "/photos" {
		t.Errorf("ParentPath(/photos/2024) = %q", got)
	}
	if got := ParentPath("/photos"); got != "/" {
		t.Errorf("ParentPath(/photos) = %q", got)
	}
	if got := ParentPath("/"); got != "/" {
		t.Errorf("ParentPath(/) = %q", got)
	}
}

func TestFolderIDStablePerAccountAndPath(t *testing.T) {
	a := FolderID("acc1", "/photos")
	b := FolderID("acc1", "photos")
	if a != b {
		t.Errorf("FolderID should normalize paths: %q != %q", a, b)
	}
	if FolderID("acc2", "/photos") == a {
		t.Error("FolderID should differ across accounts")
	}
}
