package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Provider is the external completion/image/transcription capability,
// authorized by a single API key.
type Provider interface {
	// ChatComplete sends the composed messages and returns the completion text.
	ChatComplete(ctx context.Context, messages []*schema.Message, model string) (string, error)

	// GenerateImage returns the URL of an image generated from the prompt.
	GenerateImage(ctx context.Context, prompt string) (string, error)

	// Transcribe converts recorded audio into text.
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)

	// CheckCredential probes the provider to verify the key is accepted.
	CheckCredential(ctx context.Context) error
}

// ProviderFactory builds a Provider bound to the given API key. Clients are
// cheap; one is constructed per interaction around the acting user's key.
type ProviderFactory func(apiKey string) Provider

// CredentialStore persists the user -> API key mapping. Load returns an empty
// map when no snapshot exists yet.
type CredentialStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, creds map[string]string) error
}

// QuotaGate is the advisory daily usage limiter. Both operations are
// best-effort: the check fails open and the record never raises.
type QuotaGate interface {
	IsOverLimit(ctx context.Context, userID string) bool
	RecordUsage(ctx context.Context, userID string) bool
}
