package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveUploadSameNameNoCollision(t *testing.T) {
	path1, cleanup1, err := saveUpload(strings.NewReader("first upload"), "deck.pdf")
	if err != nil {
		t.Fatalf("saveUpload: %v", err)
	}
	defer cleanup1()

	path2, cleanup2, err := saveUpload(strings.NewReader("second upload"), "deck.pdf")
	if err != nil {
		t.Fatalf("saveUpload: %v", err)
	}
	defer cleanup2()

	if path1 == path2 {
		t.Fatalf("uploads sharing a filename landed on the same path: %s", path1)
	}

	got1, err := os.ReadFile(path1)
	if err != nil {
		t.Fatalf("reading first upload: %v", err)
	}
	if string(got1) != "first upload" {
		t.Errorf("first upload content = %q, want %q", got1, "first upload")
	}
	got2, err := os.ReadFile(path2)
	if err != nil {
		t.Fatalf("reading second upload: %v", err)
	}
	if string(got2) != "second upload" {
		t.Errorf("second upload content = %q, want %q", got2, "second upload")
	}
}

func TestSaveUploadKeepsBaseNameAndStripsPath(t *testing.T) {
	path, cleanup, err := saveUpload(strings.NewReader("x"), "../../etc/deck.pdf")
	if err != nil {
		t.Fatalf("saveUpload: %v", err)
	}
	defer cleanup()

	if filepath.Base(path) != "deck.pdf" {
		t.Errorf("saved name = %s, want deck.pdf", filepath.Base(path))
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cleanup should remove the upload directory")
	}
}
