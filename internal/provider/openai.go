// Package provider implements the external completion capability against an
// OpenAI-compatible REST API. Clients are bound to one API key; the error
// message from the API body is surfaced verbatim so the dispatcher can remap
// known failures.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/eigo-sensei/server/internal/bot/model"
)

const (
	requestTimeout     = 60 * time.Second
	imageSize          = "512x512"
	transcriptionModel = "whisper-1"
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewFactory returns a ProviderFactory building clients against baseURL.
func NewFactory(baseURL string) model.ProviderFactory {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return func(apiKey string) model.Provider {
		return &Client{
			apiKey:  apiKey,
			baseURL: baseURL,
			http:    &http.Client{Timeout: requestTimeout},
		}
	}
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var env errorEnvelope
		if jsonErr := json.Unmarshal(data, &env); jsonErr == nil && env.Error != nil && env.Error.Message != "" {
			// Keep the provider's message intact for downstream remapping.
			return errors.New(env.Error.Message)
		}
		return fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) ChatComplete(ctx context.Context, messages []*schema.Message, modelID string) (string, error) {
	req := chatRequest{Model: modelID, Messages: make([]chatMessage, 0, len(messages))}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	var resp imageResponse
	if err := c.do(ctx, http.MethodPost, "/v1/images/generations", imageRequest{Prompt: prompt, N: 1, Size: imageSize}, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", errors.New("openai: empty image response")
	}
	return resp.Data[0].URL, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := w.WriteField("model", transcriptionModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp transcriptionResponse
	if err := c.send(req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// CheckCredential probes the model listing endpoint to verify the key.
func (c *Client) CheckCredential(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/models", nil, nil)
}

var _ model.Provider = (*Client)(nil)
