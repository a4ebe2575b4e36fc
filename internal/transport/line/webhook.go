// Package line adapts the LINE Messaging API webhook to the dispatcher:
// signature verification, event parsing, and reply delivery.
package line

// Config carries the channel credentials and API hosts.
type Config struct {
	ChannelSecret string `envconfig:"LINE_CHANNEL_SECRET" required:"true"`
	ChannelToken  string `envconfig:"LINE_CHANNEL_ACCESS_TOKEN" required:"true"`
	APIBaseURL    string `envconfig:"LINE_API_BASE_URL" default:"https://api.line.me"`
	DataBaseURL   string `envconfig:"LINE_DATA_BASE_URL" default:"https://api-data.line.me"`
}

type webhookRequest struct {
	Events []Event `json:"events"`
}

// Event is one inbound webhook event.
type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken"`
	Source     Source  `json:"source"`
	Message    Message `json:"message"`
}

type Source struct {
	UserID string `json:"userId"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}
