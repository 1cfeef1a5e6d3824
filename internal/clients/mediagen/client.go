package mediagen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/pipeline"
)

// ImageSynthesizer turns a prompt into raw image bytes. A non-negative
// seed pins the provider's sampler for reproducible characters; pass a
// negative seed to let the provider pick.
type ImageSynthesizer interface {
	GenerateImage(ctx context.Context, prompt, size string, seed int64) ([]byte, error)
}

// SpeechSynthesizer turns text plus a voice id into raw audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, speedRatio float64) ([]byte, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	ImageModel string
	Encoding   string
	Timeout    time.Duration
}

// Client speaks the Qiniu-style generative endpoints: image synthesis at
// /v1/images/generations (b64_json) and TTS at /v1/voice/tts.
type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	imageModel string
	encoding   string
	httpClient *http.Client
}

func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing media API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openai.qiniu.com"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "stable-diffusion-v1-5"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "mp3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		log:        log.With("service", "MediaGenClient"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		imageModel: cfg.ImageModel,
		encoding:   cfg.Encoding,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type apiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *apiHTTPError) Error() string {
	return fmt.Sprintf("mediagen http %d: %s", e.StatusCode, e.Body)
}

func (e *apiHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	Seed           *int64 `json:"seed,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// GenerateImage is a single attempt; callers own retry policy.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string, seed int64) ([]byte, error) {
	req := imageRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		Size:           size,
		ResponseFormat: "b64_json",
	}
	if seed >= 0 {
		req.Seed = &seed
	}
	var out imageResponse
	if err := c.do(ctx, "/v1/images/generations", req, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, pipeline.ModelOutputf("image response carried no base64 data")
	}
	img, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindModelOutput, "image base64 decode", err)
	}
	return img, nil
}

type ttsRequest struct {
	Audio struct {
		VoiceType  string  `json:"voice_type"`
		Encoding   string  `json:"encoding"`
		SpeedRatio float64 `json:"speed_ratio"`
	} `json:"audio"`
	Request struct {
		Text string `json:"text"`
	} `json:"request"`
}

type ttsResponse struct {
	Data string `json:"data"`
}

func (c *Client) Synthesize(ctx context.Context, text, voiceID string, speedRatio float64) ([]byte, error) {
	if speedRatio <= 0 {
		speedRatio = 1.0
	}
	var req ttsRequest
	req.Audio.VoiceType = voiceID
	req.Audio.Encoding = c.encoding
	req.Audio.SpeedRatio = speedRatio
	req.Request.Text = text

	var out ttsResponse
	if err := c.do(ctx, "/v1/voice/tts", req, &out); err != nil {
		return nil, err
	}
	if out.Data == "" {
		return nil, pipeline.ModelOutputf("tts response carried no audio data")
	}
	audio, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindModelOutput, "tts base64 decode", err)
	}
	return audio, nil
}

func (c *Client) do(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		if len(body) > 500 {
			body = body[:500] + "..."
		}
		return &apiHTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return pipeline.NewError(pipeline.KindModelOutput, "mediagen decode error", uErr)
	}
	return nil
}
