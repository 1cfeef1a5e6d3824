package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process-level configuration. Per-job knobs live in
// types.Options and arrive with each submission.
type Config struct {
	Mode     string `envconfig:"APP_MODE" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	ScratchBase string `envconfig:"SCRATCH_BASE" default:"./data/scratch"`
	VideosBase  string `envconfig:"VIDEOS_BASE" default:"./data/videos"`

	LLMBaseURL  string  `envconfig:"LLM_BASE_URL" default:"https://api.openai.com"`
	LLMAPIKey   string  `envconfig:"LLM_API_KEY" required:"true"`
	LLMModel    string  `envconfig:"LLM_MODEL" default:"gpt-4o"`
	LLMTemp     float64 `envconfig:"LLM_TEMPERATURE" default:"0.3"`
	LLMTimeout  int     `envconfig:"LLM_TIMEOUT_SECONDS" default:"180"`

	MediaBaseURL string `envconfig:"MEDIA_API_BASE_URL" default:"https://openai.qiniu.com"`
	MediaAPIKey  string `envconfig:"MEDIA_API_KEY" required:"true"`
	ImageModel   string `envconfig:"IMAGE_MODEL" default:"stable-diffusion-v1-5"`
	TTSEncoding  string `envconfig:"TTS_ENCODING" default:"mp3"`
	MediaTimeout int    `envconfig:"MEDIA_TIMEOUT_SECONDS" default:"120"`

	FFmpegPath    string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath   string `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	FFmpegTimeout int    `envconfig:"FFMPEG_TIMEOUT_SECONDS" default:"120"`

	// Empty RedisAddr disables the event relay.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_EVENT_PREFIX" default:"jobs"`

	VoiceCatalogPath string   `envconfig:"VOICE_CATALOG_PATH"`
	CORSOrigins      []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load reads .env (when present) then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) LLMTimeoutDuration() time.Duration {
	return time.Duration(c.LLMTimeout) * time.Second
}

func (c *Config) MediaTimeoutDuration() time.Duration {
	return time.Duration(c.MediaTimeout) * time.Second
}

func (c *Config) FFmpegTimeoutDuration() time.Duration {
	return time.Duration(c.FFmpegTimeout) * time.Second
}
