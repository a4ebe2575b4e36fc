package model

// ReplyKind distinguishes the outbound message variants the transport can send.
type ReplyKind int

const (
	ReplyText ReplyKind = iota
	ReplyImage
)

// Reply is the single outbound message produced for one inbound event.
type Reply struct {
	Kind       ReplyKind
	Text       string
	ImageURL   string
	PreviewURL string
}

// TextReply builds a plain text reply.
func TextReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text}
}

// ImageReply builds an image reply. The preview carries the same URL as the
// original content.
func ImageReply(url string) Reply {
	return Reply{Kind: ReplyImage, ImageURL: url, PreviewURL: url}
}
