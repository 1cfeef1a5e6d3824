package types

type ImageInfo struct {
	Prompt         string   `json:"prompt"`
	StyleTags      []string `json:"style_tags,omitempty"`
	ShotType       string   `json:"shot_type"`
	CameraAngle    string   `json:"camera_angle"`
	CameraMovement string   `json:"camera_movement,omitempty"`
	Composition    string   `json:"composition,omitempty"`
	Lighting       string   `json:"lighting,omitempty"`
	Mood           string   `json:"mood,omitempty"`
	Transition     string   `json:"transition"`
}

type AudioKind string

const (
	AudioNarration AudioKind = "narration"
	AudioDialogue  AudioKind = "dialogue"
	AudioSilence   AudioKind = "silence"
)

type AudioInfo struct {
	Kind              AudioKind `json:"kind"`
	Speaker           string    `json:"speaker,omitempty"`
	Text              string    `json:"text,omitempty"`
	EstimatedDuration float64   `json:"estimated_duration"`
}

type StoryboardScene struct {
	SceneID            int                   `json:"scene_id"`
	ImageInfo          ImageInfo             `json:"image_info"`
	AudioUnits         []AudioInfo           `json:"audio_units"`
	CharactersResolved map[string]Appearance `json:"characters_resolved,omitempty"`
	// PrimaryCharacter anchors the image-synthesis seed so the same
	// character renders consistently across scenes.
	PrimaryCharacter  string  `json:"primary_character,omitempty"`
	EstimatedDuration float64 `json:"estimated_duration"`
}

type StoryboardChapter struct {
	ChapterID int               `json:"chapter_id"`
	Title     string            `json:"title,omitempty"`
	Scenes    []StoryboardScene `json:"scenes"`
}

type Storyboard struct {
	Characters []Character         `json:"characters"`
	Chapters   []StoryboardChapter `json:"chapters"`
}

func (s *Storyboard) SceneCount() int {
	n := 0
	for _, ch := range s.Chapters {
		n += len(ch.Scenes)
	}
	return n
}

type RenderedScene struct {
	SceneRef              int     `json:"scene_ref"`
	ChapterID             int     `json:"chapter_id"`
	ImagePath             string  `json:"image_path"`
	AudioPath             string  `json:"audio_path"`
	MeasuredAudioDuration float64 `json:"measured_audio_duration"`
	FinalDuration         float64 `json:"final_duration"`
}

type RenderedChapter struct {
	ChapterID int             `json:"chapter_id"`
	Scenes    []RenderedScene `json:"scenes"`
}

type RenderedStoryboard struct {
	Chapters []RenderedChapter `json:"chapters"`
}

func (r *RenderedStoryboard) SceneCount() int {
	n := 0
	for _, ch := range r.Chapters {
		n += len(ch.Scenes)
	}
	return n
}

type FinalVideo struct {
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"duration_seconds"`
	ByteSize        int64   `json:"byte_size"`
	SceneCount      int     `json:"scene_count"`
	ChapterCount    int     `json:"chapter_count"`
}
