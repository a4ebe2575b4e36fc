package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eigo-sensei/server/internal/bot/model"
)

const clientTimeout = 10 * time.Second

// Client calls the LINE Messaging API: reply delivery and message content
// download.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: clientTimeout}}
}

type replyMessage struct {
	Type               string `json:"type"`
	Text               string `json:"text,omitempty"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string `json:"previewImageUrl,omitempty"`
}

type replyRequest struct {
	ReplyToken string         `json:"replyToken"`
	Messages   []replyMessage `json:"messages"`
}

// Reply delivers one outbound reply for the given reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, reply model.Reply) error {
	var msg replyMessage
	switch reply.Kind {
	case model.ReplyImage:
		msg = replyMessage{
			Type:               "image",
			OriginalContentURL: reply.ImageURL,
			PreviewImageURL:    reply.PreviewURL,
		}
	default:
		msg = replyMessage{Type: "text", Text: reply.Text}
	}

	body, err := json.Marshal(replyRequest{ReplyToken: replyToken, Messages: []replyMessage{msg}})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/v2/bot/message/reply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ChannelToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("line reply status %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

// MessageContent downloads the binary content of a message (audio input).
func (c *Client) MessageContent(ctx context.Context, messageID string) ([]byte, error) {
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.cfg.DataBaseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build content request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ChannelToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch message content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("line content status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
