package events

type Type string

const (
	TypeProgress  Type = "progress"
	TypeCompleted Type = "completed"
	TypeFailed    Type = "failed"
)

type CompletedResult struct {
	VideoPath   string  `json:"video_path"`
	Duration    float64 `json:"duration"`
	FileSize    int64   `json:"file_size"`
	ScenesCount int     `json:"scenes_count"`
}

// Event is the wire shape relayed to subscribers. JobID and Sequence are
// stamped by the hub on publish.
type Event struct {
	Type     Type             `json:"type"`
	JobID    string           `json:"job_id"`
	Sequence uint64           `json:"sequence"`
	Stage    string           `json:"stage,omitempty"`
	Progress int              `json:"progress"`
	Message  string           `json:"message,omitempty"`
	Result   *CompletedResult `json:"result,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Type == TypeCompleted || e.Type == TypeFailed
}
