package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSend(t *testing.T) {
	var gotTitle, gotTags, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	if err := client.Send(context.Background(), "reel download", "Some Video", "white_check_mark"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotTitle != "reel download" || gotBody != "Some Video" || gotTags != "white_check_mark" {
		t.Fatalf("got title=%q body=%q tags=%q", gotTitle, gotBody, gotTags)
	}
}

func TestSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	if err := client.Send(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestSendUnconfigured(t *testing.T) {
	client := NewClient("", time.Second)
	if err := client.Send(context.Background(), "t", "m"); err != nil {
		t.Fatalf("unconfigured client should no-op, got %v", err)
	}
}
