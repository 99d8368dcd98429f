package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiscordWebhookJSON(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	msg := Message{
		Title:     "Traffic Status",
		Color:     0xFF0000,
		Timestamp: time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC),
		Fields:    []Field{{Name: "State", Value: "Heavy", Inline: true}},
	}
	if err := NewDiscordWebhook(srv.URL).Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != "Traffic Status" || e.Color != 0xFF0000 {
		t.Errorf("embed = %+v", e)
	}
	if e.Timestamp != "2024-05-01T07:30:00Z" {
		t.Errorf("Timestamp = %q", e.Timestamp)
	}
	if e.Image != nil {
		t.Errorf("Image = %+v, want nil", e.Image)
	}
}

func TestDiscordWebhookMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "home.png")
	if err := os.WriteFile(path, []byte("PNGDATA"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal([]byte(r.FormValue("payload_json")), &payload); err != nil {
			t.Errorf("payload_json: %v", err)
		}
		if len(payload.Embeds) != 1 || payload.Embeds[0].Image == nil || payload.Embeds[0].Image.URL != "attachment://home.png" {
			t.Errorf("embed image = %+v", payload.Embeds)
		}
		f, hdr, err := r.FormFile("files[0]")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "home.png" || string(data) != "PNGDATA" {
			t.Errorf("file = %s %q", hdr.Filename, data)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	msg := Message{Title: "Traffic Status", Image: &Attachment{Path: path}}
	if err := NewDiscordWebhook(srv.URL).Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestDiscordWebhookStatus(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusCreated, false},
		{http.StatusNoContent, false},
		{http.StatusAccepted, true},
		{http.StatusBadRequest, true},
		{http.StatusTooManyRequests, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewDiscordWebhook(srv.URL).Send(context.Background(), Message{Title: "t"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnexpectedStatus) {
				t.Errorf("error = %v, want ErrUnexpectedStatus", err)
			}
		})
	}
}

func TestDiscordWebhookMissingAttachment(t *testing.T) {
	msg := Message{Title: "t", Image: &Attachment{Path: filepath.Join(t.TempDir(), "missing.png")}}
	if err := NewDiscordWebhook("http://127.0.0.1:1").Send(context.Background(), msg); err == nil {
		t.Fatal("Send() error = nil, want error for missing file")
	}
}

func TestDiscordWebhookValidate(t *testing.T) {
	if err := NewDiscordWebhook("").Validate(); err == nil {
		t.Error("Validate() with empty URL = nil, want error")
	}
	if err := NewDiscordWebhook("https://discord.example/webhook").Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
