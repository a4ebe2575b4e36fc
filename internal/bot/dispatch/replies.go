package dispatch

// User-facing reply texts. The bot serves a Mandarin-speaking audience
// learning English, with the quota notice in Japanese for the correction
// service's paying tier.
const (
	replyRegisterSuccess = "Token 有效，註冊成功"
	replySystemPromptSet = "輸入成功"
	replyHistoryCleared  = "歷史訊息清除成功"
	replyInvalidToken    = "Token 無效，請重新註冊，格式為 /註冊 sk-xxxxx"
	replyMissingToken    = "請先註冊 Token，格式為 /註冊 sk-xxxxx"
	replyTokenRejected   = "OpenAI API Token 有誤，請重新註冊。"
	replyOverloaded      = "已超過負荷，請稍後再試"
	replyQuotaExceeded   = "今日の無料利用回数（5回）を超えました！続けて利用したい場合は有料プランをご検討ください😊"

	replyHelp = "指令：\n" +
		"/註冊 + API Token\n👉 API Token 請先到 https://platform.openai.com/ 註冊登入後取得\n\n" +
		"/系統訊息 + Prompt\n👉 Prompt 可以命令機器人扮演某個角色，例如：請你扮演擅長做總結的人\n\n" +
		"/清除\n👉 當前每一次都會紀錄最後兩筆歷史紀錄，這個指令能夠清除歷史訊息\n\n" +
		"/圖像 + Prompt\n👉 會調用 DALL∙E 2 Model，以文字生成圖像\n\n" +
		"語音輸入\n👉 會調用 Whisper 模型，先將語音轉換成文字，再調用 ChatGPT 以文字回覆\n\n" +
		"其他文字輸入\n👉 調用 ChatGPT 以文字回覆"
)

// Provider error prefixes remapped to friendlier localized replies.
const (
	incorrectAPIKeyPrefix = "Incorrect API key provided"
	modelOverloadedPrefix = "That model is currently overloaded with other requests."
)

// correctionTemplate is the fixed instructional prompt for the plain-text
// branch. The user's raw text is embedded at the end.
const correctionTemplate = `あなたは英語添削をする先生です。
以下の英文を添削してください。

・まず、文章の良い点や間違いを指摘（英語＆日本語）
・次に、添削後の正しい英文を示す
・最後に、日本語で初心者向けの簡単なアドバイスを添える

フォーマットは以下の通りです：

【添削結果】
（英語のコメント）
（日本語のコメント）
→ 添削後の正しい英文

【アドバイス】
（日本語で一言アドバイス）

対象の英文：
「%s」`
