package types

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

type AgeStage string

const (
	AgeChild   AgeStage = "child"
	AgeYouth   AgeStage = "youth"
	AgeAdult   AgeStage = "adult"
	AgeElder   AgeStage = "elder"
	AgeUnknown AgeStage = "unknown"
)

type Appearance struct {
	Gender   Gender   `json:"gender,omitempty"`
	Age      int      `json:"age,omitempty"`
	AgeStage AgeStage `json:"age_stage,omitempty"`
	Hair     string   `json:"hair,omitempty"`
	Eyes     string   `json:"eyes,omitempty"`
	Clothing string   `json:"clothing,omitempty"`
	Features string   `json:"features,omitempty"`
	BodyType string   `json:"body_type,omitempty"`
	Height   string   `json:"height,omitempty"`
	Skin     string   `json:"skin,omitempty"`
}

type AgeVariant struct {
	AgeStage   AgeStage   `json:"age_stage"`
	Appearance Appearance `json:"appearance"`
}

type Character struct {
	Name        string       `json:"name"`
	Appearance  Appearance   `json:"appearance"`
	Personality string       `json:"personality,omitempty"`
	Role        string       `json:"role,omitempty"`
	AgeVariants []AgeVariant `json:"age_variants,omitempty"`
}

type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type Scene struct {
	SceneID              int                   `json:"scene_id"`
	Location             string                `json:"location,omitempty"`
	Time                 string                `json:"time,omitempty"`
	Description          string                `json:"description,omitempty"`
	Atmosphere           string                `json:"atmosphere,omitempty"`
	Lighting             string                `json:"lighting,omitempty"`
	Characters           []string              `json:"characters,omitempty"`
	Narration            string                `json:"narration,omitempty"`
	Dialogue             []DialogueLine        `json:"dialogue,omitempty"`
	Actions              []string              `json:"actions,omitempty"`
	CharacterAppearances map[string]Appearance `json:"character_appearances,omitempty"`
}

type Chapter struct {
	ChapterID int     `json:"chapter_id"`
	Title     string  `json:"title,omitempty"`
	Scenes    []Scene `json:"scenes"`
}

type PlotKind string

const (
	PlotConflict   PlotKind = "conflict"
	PlotClimax     PlotKind = "climax"
	PlotResolution PlotKind = "resolution"
	PlotNormal     PlotKind = "normal"
)

type PlotPoint struct {
	SceneRef    int      `json:"scene_ref"`
	Kind        PlotKind `json:"kind"`
	Description string   `json:"description,omitempty"`
}

type AnalyzedText struct {
	Characters []Character `json:"characters"`
	Chapters   []Chapter   `json:"chapters"`
	PlotPoints []PlotPoint `json:"plot_points,omitempty"`
}

// SceneCount is the total number of scenes across all chapters.
func (a *AnalyzedText) SceneCount() int {
	n := 0
	for _, ch := range a.Chapters {
		n += len(ch.Scenes)
	}
	return n
}

// CharacterByName does a linear scan; character counts are capped small.
func (a *AnalyzedText) CharacterByName(name string) (Character, bool) {
	for _, c := range a.Characters {
		if c.Name == name {
			return c, true
		}
	}
	return Character{}, false
}
