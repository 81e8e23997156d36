package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := map[string]MediaKind{
		"photo.JPG":  KindImage,
		"clip.mp4":   KindVideo,
		"voice.oga":  KindAudio,
		"menu.pdf":   KindDocument,
		"noext":      KindDocument,
	}
	for path, want := range cases {
		if got := KindOf(path); got != want {
			t.Fatalf("KindOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename("../../etc/passwd"); strings.Contains(got, "..") || strings.Contains(got, "/") {
		t.Fatalf("unsafe name %q", got)
	}
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("jpegbytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := DownloadFile(context.Background(), srv.URL+"/photo", "photo.jpg", DownloadOptions{Dir: dir})
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, "_photo.jpg") {
		t.Fatalf("unexpected path %q", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "jpegbytes" {
		t.Fatalf("content = %q", data)
	}

	if _, err := DownloadFile(context.Background(), srv.URL+"/missing", "x.jpg", DownloadOptions{Dir: dir}); err == nil {
		t.Fatal("expected error on 404")
	}
}
