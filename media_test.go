package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newMediaEngine(t *testing.T, client *http.Client) *Engine {
	t.Helper()
	ms, tw := newFakes()
	return NewEngine(newTestRepo(t), ms, tw, client, testLogger(), EngineOptions{MaxPairs: 100})
}

func TestDownloadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cat.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		case "/clip.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("mp4-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	e := newMediaEngine(t, srv.Client())

	tests := []struct {
		name     string
		url      string
		wantOK   bool
		wantType string
	}{
		{"image ok", srv.URL + "/cat.jpg", true, "image/jpeg"},
		{"non-image rejected", srv.URL + "/clip.mp4", false, ""},
		{"missing rejected", srv.URL + "/gone.png", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, contentType, ok := e.downloadAttachment(context.Background(), Media{URL: tt.url, Kind: "image"})
			if ok != tt.wantOK {
				t.Fatalf("downloadAttachment() ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if contentType != tt.wantType {
				t.Errorf("contentType = %q, want %q", contentType, tt.wantType)
			}
			if len(data) == 0 {
				t.Error("downloadAttachment() returned empty body")
			}
		})
	}
}

func TestMirrorAttachmentsDryRunDownloadsButDoesNotUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	ms, tw := newFakes()
	e := NewEngine(newTestRepo(t), ms, tw, srv.Client(), testLogger(),
		EngineOptions{DryRun: true, MaxPairs: 100})

	atts := []Media{{URL: srv.URL + "/a.png", Kind: "image"}, {URL: srv.URL + "/b.png", Kind: "image"}}
	mediaIDs, prepared := e.mirrorAttachments(context.Background(), tw, atts)

	if prepared != 2 {
		t.Errorf("prepared = %d, want 2", prepared)
	}
	if len(mediaIDs) != 0 {
		t.Errorf("mediaIDs = %v, want none in dry run", mediaIDs)
	}
	if tw.uploadCount != 0 {
		t.Errorf("uploadCount = %d, want 0 in dry run", tw.uploadCount)
	}
}
