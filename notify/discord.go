package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

var ErrUnexpectedStatus = errors.New("webhook returned unexpected status")

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Attachment is a local file uploaded alongside the message and shown as its image.
type Attachment struct {
	Path string
}

type Message struct {
	Title       string
	Description string
	Color       int
	Timestamp   time.Time
	Fields      []Field
	Image       *Attachment
}

// Sender delivers a composed message to a chat channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type embedImage struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Color       int         `json:"color"`
	Timestamp   string      `json:"timestamp,omitempty"`
	Fields      []Field     `json:"fields,omitempty"`
	Image       *embedImage `json:"image,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// DiscordWebhook posts messages as embeds to a Discord webhook URL.
type DiscordWebhook struct {
	url    string
	client *http.Client
}

func NewDiscordWebhook(url string) *DiscordWebhook {
	return &DiscordWebhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordWebhook) Validate() error {
	if d.url == "" {
		return errors.New("discord webhook URL is required")
	}
	return nil
}

func (d *DiscordWebhook) Send(ctx context.Context, msg Message) error {
	e := embed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
		Fields:      msg.Fields,
	}
	if !msg.Timestamp.IsZero() {
		e.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}

	var (
		body        io.Reader
		contentType string
	)
	if msg.Image != nil {
		e.Image = &embedImage{URL: "attachment://" + filepath.Base(msg.Image.Path)}
		buf, ct, err := multipartBody(webhookPayload{Embeds: []embed{e}}, msg.Image.Path)
		if err != nil {
			return err
		}
		body, contentType = buf, ct
	} else {
		raw, err := json.Marshal(webhookPayload{Embeds: []embed{e}})
		if err != nil {
			return err
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
}

func multipartBody(payload webhookPayload, path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.WriteField("payload_json", string(raw)); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("files[0]", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
