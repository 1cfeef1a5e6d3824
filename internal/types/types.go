package types

import "time"

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a job in this status can still change.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Job struct {
	ID          string      `json:"id"`
	InputText   string      `json:"-"`
	Options     Options     `json:"options"`
	Status      JobStatus   `json:"status"`
	Stage       string      `json:"stage"`
	ProgressPct int         `json:"progress_pct"`
	Message     string      `json:"message"`
	Result      *FinalVideo `json:"result,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
	ErrorDetail string      `json:"error_detail,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type AnalyzerMode string

const (
	AnalyzerSimple  AnalyzerMode = "simple"
	AnalyzerChunked AnalyzerMode = "chunked"
)

type DialogueMode string

const (
	DialoguePerLine DialogueMode = "per_line"
	DialogueMerged  DialogueMode = "merged"
)

type Options struct {
	AnalyzerMode           AnalyzerMode `json:"analyzer_mode"`
	MaxCharacters          int          `json:"max_characters"`
	MaxScenes              int          `json:"max_scenes"`
	ChunkSize              int          `json:"chunk_size"`
	MinTextLength          int          `json:"min_text_length"`
	DialogueMode           DialogueMode `json:"dialogue_mode"`
	DurationMin            float64      `json:"duration_min"`
	DurationMax            float64      `json:"duration_max"`
	CharsPerSecond         float64      `json:"chars_per_second"`
	ActionSeconds          float64      `json:"action_seconds"`
	SilentSceneDuration    float64      `json:"silent_scene_duration"`
	ImageSize              string       `json:"image_size"`
	RetryAttempts          int          `json:"retry_attempts"`
	RequestTimeoutSec      int          `json:"request_timeout"`
	JobTimeoutSec          int          `json:"job_timeout"`
	MaxParallelScenes      int          `json:"max_parallel_scenes"`
	RetainScratchOnFailure bool         `json:"retain_scratch_on_failure"`
	NarratorVoice          string       `json:"narrator_voice"`
	DefaultVoice           string       `json:"default_voice"`
}

// ApplyDefaults fills every zero-valued option with its documented default.
func (o *Options) ApplyDefaults() {
	if o.AnalyzerMode == "" {
		o.AnalyzerMode = AnalyzerChunked
	}
	if o.MaxCharacters <= 0 {
		o.MaxCharacters = 10
	}
	if o.MaxScenes <= 0 {
		o.MaxScenes = 30
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 3000
	}
	if o.MinTextLength <= 0 {
		o.MinTextLength = 200
	}
	if o.DialogueMode == "" {
		o.DialogueMode = DialogueMerged
	}
	if o.DurationMin <= 0 {
		o.DurationMin = 3.0
	}
	if o.DurationMax <= 0 {
		o.DurationMax = 10.0
	}
	if o.CharsPerSecond <= 0 {
		o.CharsPerSecond = 3.0
	}
	if o.ActionSeconds <= 0 {
		o.ActionSeconds = 1.5
	}
	if o.SilentSceneDuration <= 0 {
		o.SilentSceneDuration = 3.0
	}
	if o.ImageSize == "" {
		o.ImageSize = "1024x1024"
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RequestTimeoutSec <= 0 {
		o.RequestTimeoutSec = 300
	}
	if o.MaxParallelScenes <= 0 {
		o.MaxParallelScenes = 1
	}
	if o.NarratorVoice == "" {
		o.NarratorVoice = "qiniu_zh_male_tyygjs"
	}
	if o.DefaultVoice == "" {
		o.DefaultVoice = "qiniu_zh_female_wwxkjx"
	}
}

func (o Options) RequestTimeout() time.Duration {
	return time.Duration(o.RequestTimeoutSec) * time.Second
}

func (o Options) JobTimeout() time.Duration {
	return time.Duration(o.JobTimeoutSec) * time.Second
}
