package local

import (
	"context"
	"io"
	"strings"
	"testing"
)

func newTestBackend(t *testing.T) *LocalBackend {
	t.Helper()
	b, err := New(Config{RootPath: t.TempDir(), CreateDirs: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestPutGetRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	content := "mp3 bytes here"
	if err := b.PutObject(ctx, "general_abc123.mp3", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	rc, size, err := b.GetObject(ctx, "general_abc123.mp3", 0, 0)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if string(data) != content || size != int64(len(content)) {
		t.Errorf("got %q (size %d), want %q", data, size, content)
	}
}

func TestGetObjectRange(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.PutObject(ctx, "audio.mp3", strings.NewReader("0123456789"), 10); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	rc, size, err := b.GetObject(ctx, "audio.mp3", 2, 4)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "2345" || size != 4 {
		t.Errorf("range read = %q (size %d), want 2345 (4)", data, size)
	}
}

func TestObjectExistsAndDelete(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if ok, _ := b.ObjectExists(ctx, "missing.mp3"); ok {
		t.Error("missing object reported as existing")
	}

	if err := b.PutObject(ctx, "x.mp3", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if ok, _ := b.ObjectExists(ctx, "x.mp3"); !ok {
		t.Error("stored object not found")
	}

	if err := b.DeleteObject(ctx, "x.mp3"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if ok, _ := b.ObjectExists(ctx, "x.mp3"); ok {
		t.Error("deleted object still exists")
	}

	// Deleting a missing object is not an error.
	if err := b.DeleteObject(ctx, "x.mp3"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestPutObjectCreatesNestedDirs(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if err := b.PutObject(ctx, "nested/deep/file.mp3", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("PutObject nested: %v", err)
	}
	if ok, _ := b.ObjectExists(ctx, "nested/deep/file.mp3"); !ok {
		t.Error("nested object not found")
	}
}
