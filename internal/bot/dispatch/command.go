package dispatch

import "strings"

// Kind enumerates the command variants the router recognizes.
type Kind int

const (
	KindRegister Kind = iota
	KindHelp
	KindSetSystem
	KindClear
	KindImage
	KindChat
)

// Command is the parsed form of one inbound text message. Arg holds the
// trimmed text after the command prefix, or the full text for KindChat.
type Command struct {
	Kind Kind
	Arg  string
}

const (
	prefixRegister  = "/註冊"
	prefixHelp      = "/指令說明"
	prefixSetSystem = "/系統訊息"
	prefixClear     = "/清除"
	prefixImage     = "/圖像"
)

// Parse resolves the command kind by prefix, checked in order with first
// match winning. Anything without a known prefix is a chat request.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, prefixRegister):
		return Command{Kind: KindRegister, Arg: arg(text, prefixRegister)}
	case strings.HasPrefix(text, prefixHelp):
		return Command{Kind: KindHelp}
	case strings.HasPrefix(text, prefixSetSystem):
		return Command{Kind: KindSetSystem, Arg: arg(text, prefixSetSystem)}
	case strings.HasPrefix(text, prefixClear):
		return Command{Kind: KindClear}
	case strings.HasPrefix(text, prefixImage):
		return Command{Kind: KindImage, Arg: arg(text, prefixImage)}
	default:
		return Command{Kind: KindChat, Arg: text}
	}
}

func arg(text, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(text, prefix))
}
