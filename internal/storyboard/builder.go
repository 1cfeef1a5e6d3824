package storyboard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/types"
)

const (
	defaultShotType    = "medium_shot"
	defaultCameraAngle = "eye_level"
	defaultTransition  = "cut"
	defaultPauseMarker = "... "
)

// Builder turns an AnalyzedText into a Storyboard. Deterministic: same
// input and options, same output.
type Builder struct {
	pauseMarker string
	log         *logger.Logger
}

func New(log *logger.Logger) *Builder {
	return &Builder{
		pauseMarker: defaultPauseMarker,
		log:         log.With("service", "storyboard_builder"),
	}
}

func (b *Builder) Build(at *types.AnalyzedText, opts types.Options) *types.Storyboard {
	sb := &types.Storyboard{Characters: at.Characters}
	for _, ch := range at.Chapters {
		outCh := types.StoryboardChapter{ChapterID: ch.ChapterID, Title: ch.Title}
		for _, sc := range ch.Scenes {
			outCh.Scenes = append(outCh.Scenes, b.buildScene(at, sc, opts))
		}
		sb.Chapters = append(sb.Chapters, outCh)
	}
	b.log.Info("Storyboard built", "chapters", len(sb.Chapters), "scenes", sb.SceneCount())
	return sb
}

func (b *Builder) buildScene(at *types.AnalyzedText, sc types.Scene, opts types.Options) types.StoryboardScene {
	resolved := resolveAppearances(at, sc)
	units := b.buildAudioUnits(sc, opts)

	total := 0.0
	for _, u := range units {
		total += u.EstimatedDuration
	}
	if total < opts.DurationMin {
		total = opts.DurationMin
	}
	if total > opts.DurationMax {
		total = opts.DurationMax
	}

	primary := ""
	if len(sc.Characters) > 0 {
		primary = sc.Characters[0]
	}

	return types.StoryboardScene{
		SceneID:            sc.SceneID,
		ImageInfo:          buildImageInfo(sc, resolved),
		AudioUnits:         units,
		CharactersResolved: resolved,
		PrimaryCharacter:   primary,
		EstimatedDuration:  total,
	}
}

// resolveAppearances overlays each scene-local override on top of the
// character's global appearance.
func resolveAppearances(at *types.AnalyzedText, sc types.Scene) map[string]types.Appearance {
	if len(sc.Characters) == 0 {
		return nil
	}
	out := make(map[string]types.Appearance, len(sc.Characters))
	for _, name := range sc.Characters {
		base := types.Appearance{Gender: types.GenderUnknown, AgeStage: types.AgeUnknown}
		if ch, ok := at.CharacterByName(name); ok {
			base = ch.Appearance
		}
		if override, ok := sc.CharacterAppearances[name]; ok {
			base = overlay(base, override)
		}
		out[name] = base
	}
	return out
}

func overlay(base, override types.Appearance) types.Appearance {
	if override.Gender != "" && override.Gender != types.GenderUnknown {
		base.Gender = override.Gender
	}
	if override.Age != 0 {
		base.Age = override.Age
	}
	if override.AgeStage != "" && override.AgeStage != types.AgeUnknown {
		base.AgeStage = override.AgeStage
	}
	pick := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	pick(&base.Hair, override.Hair)
	pick(&base.Eyes, override.Eyes)
	pick(&base.Clothing, override.Clothing)
	pick(&base.Features, override.Features)
	pick(&base.BodyType, override.BodyType)
	pick(&base.Height, override.Height)
	pick(&base.Skin, override.Skin)
	return base
}

func (b *Builder) buildAudioUnits(sc types.Scene, opts types.Options) []types.AudioInfo {
	switch {
	case len(sc.Dialogue) > 0:
		if opts.DialogueMode == types.DialoguePerLine {
			units := make([]types.AudioInfo, 0, len(sc.Dialogue))
			for _, line := range sc.Dialogue {
				units = append(units, types.AudioInfo{
					Kind:              types.AudioDialogue,
					Speaker:           line.Speaker,
					Text:              line.Text,
					EstimatedDuration: estimate(line.Text, len(sc.Actions), opts),
				})
			}
			return units
		}
		texts := make([]string, 0, len(sc.Dialogue))
		for _, line := range sc.Dialogue {
			texts = append(texts, line.Text)
		}
		merged := strings.Join(texts, b.pauseMarker)
		return []types.AudioInfo{{
			Kind:              types.AudioDialogue,
			Speaker:           sc.Dialogue[0].Speaker,
			Text:              merged,
			EstimatedDuration: estimate(merged, len(sc.Actions), opts),
		}}
	case strings.TrimSpace(sc.Narration) != "":
		return []types.AudioInfo{{
			Kind:              types.AudioNarration,
			Text:              sc.Narration,
			EstimatedDuration: estimate(sc.Narration, len(sc.Actions), opts),
		}}
	default:
		return []types.AudioInfo{{
			Kind:              types.AudioSilence,
			EstimatedDuration: opts.SilentSceneDuration,
		}}
	}
}

// estimate prices a speech unit: reading time plus a beat per action,
// clamped to the configured window.
func estimate(text string, actions int, opts types.Options) float64 {
	d := float64(utf8.RuneCountInString(text))/opts.CharsPerSecond +
		float64(actions)*opts.ActionSeconds
	if d < opts.DurationMin {
		d = opts.DurationMin
	}
	if d > opts.DurationMax {
		d = opts.DurationMax
	}
	return d
}

func buildImageInfo(sc types.Scene, resolved map[string]types.Appearance) types.ImageInfo {
	var parts []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	add(sc.Description)
	if sc.Location != "" {
		add("location: " + sc.Location)
	}
	if sc.Time != "" {
		add("time: " + sc.Time)
	}
	add(sc.Atmosphere)
	add(sc.Lighting)
	for _, name := range sc.Characters {
		if app, ok := resolved[name]; ok {
			add(describeCharacter(name, app))
		}
	}

	return types.ImageInfo{
		Prompt:      strings.Join(parts, ", "),
		StyleTags:   []string{"cinematic", "detailed illustration"},
		ShotType:    defaultShotType,
		CameraAngle: defaultCameraAngle,
		Lighting:    sc.Lighting,
		Mood:        sc.Atmosphere,
		Transition:  defaultTransition,
	}
}

func describeCharacter(name string, a types.Appearance) string {
	var traits []string
	if a.Gender != "" && a.Gender != types.GenderUnknown {
		traits = append(traits, string(a.Gender))
	}
	if a.AgeStage != "" && a.AgeStage != types.AgeUnknown {
		traits = append(traits, string(a.AgeStage))
	}
	add := func(label, v string) {
		if v != "" {
			traits = append(traits, fmt.Sprintf("%s %s", v, label))
		}
	}
	add("hair", a.Hair)
	add("eyes", a.Eyes)
	if a.Clothing != "" {
		traits = append(traits, "wearing "+a.Clothing)
	}
	if a.Features != "" {
		traits = append(traits, a.Features)
	}
	if len(traits) == 0 {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, strings.Join(traits, ", "))
}
