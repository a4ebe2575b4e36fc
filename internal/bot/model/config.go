package model

// ================ Config ================
type BotConfig struct {
	SystemMessage      string `envconfig:"SYSTEM_MESSAGE" default:"You are a helpful assistant."`
	MemoryMessageCount int    `envconfig:"MEMORY_MESSAGE_COUNT" default:"2"`
	ModelEngine        string `envconfig:"OPENAI_MODEL_ENGINE" default:"gpt-3.5-turbo"`
	DefaultAPIKey      string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL      string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
}

type QuotaConfig struct {
	URL            string `envconfig:"QUOTA_ENDPOINT_URL"`
	DailyLimit     int    `envconfig:"QUOTA_DAILY_LIMIT" default:"5"`
	TimeoutSeconds int    `envconfig:"QUOTA_TIMEOUT" default:"2"`
}

type StorageConfig struct {
	Backend  string `envconfig:"STORAGE_BACKEND" default:"file"`
	FilePath string `envconfig:"STORAGE_FILE_PATH" default:"credentials.json"`
	RedisKey string `envconfig:"STORAGE_REDIS_KEY" default:"bot:credentials"`
}
