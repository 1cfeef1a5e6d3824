package render

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noveltoon/backend/internal/clients/mediagen"
	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/media"
	"github.com/noveltoon/backend/internal/pipeline"
	"github.com/noveltoon/backend/internal/retry"
	"github.com/noveltoon/backend/internal/scratch"
	"github.com/noveltoon/backend/internal/types"
	"github.com/noveltoon/backend/internal/voice"
)

// ProgressFunc is called with the count of scenes completed so far.
// Invocations are serialized, so the count only grows.
type ProgressFunc func(completed, total int)

// MediaTools is the slice of the ffmpeg adapter the renderer needs.
type MediaTools interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	Concat(ctx context.Context, listPath, outPath string) error
	SilentAudio(ctx context.Context, seconds float64, outPath string) error
}

// Renderer drives stage 3: one image and one audio track per scene,
// persisted into the job's scratch area.
type Renderer struct {
	images     mediagen.ImageSynthesizer
	speech     mediagen.SpeechSynthesizer
	tools      MediaTools
	speedRatio float64
	log        *logger.Logger
}

func New(images mediagen.ImageSynthesizer, speech mediagen.SpeechSynthesizer, tools MediaTools, log *logger.Logger) *Renderer {
	return &Renderer{
		images:     images,
		speech:     speech,
		tools:      tools,
		speedRatio: 1.0,
		log:        log.With("service", "scene_renderer"),
	}
}

type sceneRef struct {
	chapterIdx int
	sceneIdx   int
	ordinal    int // global 1-based scene number
}

func (r *Renderer) Render(
	ctx context.Context,
	sb *types.Storyboard,
	reg *voice.Registry,
	sc *scratch.Scratch,
	opts types.Options,
	onProgress ProgressFunc,
) (*types.RenderedStoryboard, error) {
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	r.preassignVoices(sb, reg)

	refs := flatten(sb)
	total := len(refs)
	results := make([]types.RenderedScene, total)

	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxParallelScenes)

	for _, ref := range refs {
		ref := ref
		scene := sb.Chapters[ref.chapterIdx].Scenes[ref.sceneIdx]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return pipeline.NewError(pipeline.KindCancelled, "render aborted", err)
			}
			rendered, err := r.renderScene(gctx, scene, ref, reg, sc, opts)
			if err != nil {
				return pipeline.Tag(err, pipeline.StageRender, ref.ordinal, pipeline.KindRender)
			}
			results[ref.ordinal-1] = rendered

			mu.Lock()
			completed++
			done := completed
			onProgress(done, total)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &types.RenderedStoryboard{}
	idx := 0
	for _, ch := range sb.Chapters {
		rc := types.RenderedChapter{ChapterID: ch.ChapterID}
		for range ch.Scenes {
			rc.Scenes = append(rc.Scenes, results[idx])
			idx++
		}
		out.Chapters = append(out.Chapters, rc)
	}
	r.log.Info("Render complete", "scenes", total)
	return out, nil
}

// preassignVoices walks every dialogue unit up front so scene completion
// order can never shuffle voice choices within a job.
func (r *Renderer) preassignVoices(sb *types.Storyboard, reg *voice.Registry) {
	for _, ch := range sb.Chapters {
		for _, sc := range ch.Scenes {
			for _, unit := range sc.AudioUnits {
				if unit.Kind != types.AudioDialogue || unit.Speaker == "" {
					continue
				}
				if _, ok := reg.Lookup(unit.Speaker); ok {
					continue
				}
				char := characterByName(sb.Characters, unit.Speaker)
				id := reg.Assign(unit.Speaker, char)
				r.log.Debug("Assigned voice", "speaker", unit.Speaker, "voice_id", id)
			}
		}
	}
}

func (r *Renderer) renderScene(
	ctx context.Context,
	scene types.StoryboardScene,
	ref sceneRef,
	reg *voice.Registry,
	sc *scratch.Scratch,
	opts types.Options,
) (types.RenderedScene, error) {
	imagePath, err := r.renderImage(ctx, scene, ref, sc, opts)
	if err != nil {
		return types.RenderedScene{}, fmt.Errorf("render image: %w", err)
	}

	audioPath, err := r.renderAudio(ctx, scene, ref, reg, sc, opts)
	if err != nil {
		return types.RenderedScene{}, fmt.Errorf("render audio: %w", err)
	}

	measured, err := r.tools.ProbeDuration(ctx, audioPath)
	if err != nil {
		return types.RenderedScene{}, fmt.Errorf("probe audio duration: %w", err)
	}

	final := scene.EstimatedDuration
	if measured > final {
		final = measured
	}

	return types.RenderedScene{
		SceneRef:              ref.ordinal,
		ChapterID:             ref.chapterIdx + 1,
		ImagePath:             imagePath,
		AudioPath:             audioPath,
		MeasuredAudioDuration: measured,
		FinalDuration:         final,
	}, nil
}

func (r *Renderer) renderImage(ctx context.Context, scene types.StoryboardScene, ref sceneRef, sc *scratch.Scratch, opts types.Options) (string, error) {
	seed := int64(-1)
	if scene.PrimaryCharacter != "" {
		seed = characterSeed(scene.PrimaryCharacter)
	}
	data, err := retry.Do(ctx, retry.DefaultPolicy(opts.RetryAttempts), retry.DefaultClassifier,
		func(ctx context.Context) ([]byte, error) {
			callCtx, cancel := withRequestTimeout(ctx, opts)
			defer cancel()
			return r.images.GenerateImage(callCtx, scene.ImageInfo.Prompt, opts.ImageSize, seed)
		})
	if err != nil {
		return "", err
	}
	return sc.SaveImage(data, fmt.Sprintf("scene_%03d", ref.ordinal))
}

// characterSeed pins the image sampler per character: md5(name) mod 2^32,
// so the same character keeps the same face across scenes and jobs.
func characterSeed(name string) int64 {
	sum := md5.Sum([]byte(name))
	return int64(binary.BigEndian.Uint32(sum[12:]))
}

// renderAudio produces exactly one audio file per scene. Multiple units
// (per_line dialogue) are synthesized individually then stream-copied into
// a single track.
func (r *Renderer) renderAudio(ctx context.Context, scene types.StoryboardScene, ref sceneRef, reg *voice.Registry, sc *scratch.Scratch, opts types.Options) (string, error) {
	var unitPaths []string
	for i, unit := range scene.AudioUnits {
		hint := fmt.Sprintf("scene_%03d_u%02d", ref.ordinal, i)
		path, err := r.renderUnit(ctx, unit, hint, reg, sc, opts)
		if err != nil {
			return "", err
		}
		unitPaths = append(unitPaths, path)
	}
	if len(unitPaths) == 1 {
		return unitPaths[0], nil
	}

	listPath, err := sc.SaveTemp(media.ConcatList(unitPaths), fmt.Sprintf("scene_%03d_audio.txt", ref.ordinal))
	if err != nil {
		return "", err
	}
	out := filepath.Join(sc.AudioDir(), fmt.Sprintf("scene_%03d.mp3", ref.ordinal))
	if err := r.tools.Concat(ctx, listPath, out); err != nil {
		return "", fmt.Errorf("concat audio units: %w", err)
	}
	return out, nil
}

func (r *Renderer) renderUnit(ctx context.Context, unit types.AudioInfo, hint string, reg *voice.Registry, sc *scratch.Scratch, opts types.Options) (string, error) {
	if unit.Kind == types.AudioSilence {
		out := filepath.Join(sc.AudioDir(), hint+".mp3")
		dur := unit.EstimatedDuration
		if dur <= 0 {
			dur = opts.SilentSceneDuration
		}
		if err := r.tools.SilentAudio(ctx, dur, out); err != nil {
			return "", fmt.Errorf("generate silent audio: %w", err)
		}
		return out, nil
	}

	voiceID := reg.NarrationVoice()
	if unit.Kind == types.AudioDialogue && unit.Speaker != "" {
		if id, ok := reg.Lookup(unit.Speaker); ok {
			voiceID = id
		}
	}

	data, err := retry.Do(ctx, retry.DefaultPolicy(opts.RetryAttempts), retry.DefaultClassifier,
		func(ctx context.Context) ([]byte, error) {
			callCtx, cancel := withRequestTimeout(ctx, opts)
			defer cancel()
			return r.speech.Synthesize(callCtx, unit.Text, voiceID, r.speedRatio)
		})
	if err != nil {
		return "", err
	}
	return sc.SaveAudio(data, hint)
}

func withRequestTimeout(ctx context.Context, opts types.Options) (context.Context, context.CancelFunc) {
	if opts.RequestTimeoutSec <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(opts.RequestTimeoutSec)*time.Second)
}

func characterByName(chars []types.Character, name string) types.Character {
	for _, c := range chars {
		if c.Name == name {
			return c
		}
	}
	return types.Character{
		Name: name,
		Appearance: types.Appearance{
			Gender:   types.GenderUnknown,
			AgeStage: types.AgeUnknown,
		},
	}
}

func flatten(sb *types.Storyboard) []sceneRef {
	var refs []sceneRef
	ordinal := 0
	for ci, ch := range sb.Chapters {
		for si := range ch.Scenes {
			ordinal++
			refs = append(refs, sceneRef{chapterIdx: ci, sceneIdx: si, ordinal: ordinal})
		}
	}
	return refs
}
