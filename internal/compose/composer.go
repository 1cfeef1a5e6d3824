package compose

import (
	"context"
	"fmt"
	"os"

	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/media"
	"github.com/noveltoon/backend/internal/pipeline"
	"github.com/noveltoon/backend/internal/scratch"
	"github.com/noveltoon/backend/internal/types"
)

// MediaTools is the slice of the ffmpeg adapter the composer needs.
type MediaTools interface {
	MuxStill(ctx context.Context, imagePath, audioPath string, duration float64, outPath string) error
	Concat(ctx context.Context, listPath, outPath string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Composer drives stage 4: scene clips, chapter concat, final concat,
// promotion. All concats are stream-copy; clips come out of MuxStill with
// fixed codec settings so they are concat-compatible by construction.
type Composer struct {
	tools MediaTools
	log   *logger.Logger
}

func New(tools MediaTools, log *logger.Logger) *Composer {
	return &Composer{tools: tools, log: log.With("service", "scene_composer")}
}

func (c *Composer) Compose(ctx context.Context, rendered *types.RenderedStoryboard, sc *scratch.Scratch, opts types.Options) (*types.FinalVideo, error) {
	video, err := c.compose(ctx, rendered, sc)
	if err != nil {
		return nil, pipeline.Tag(err, pipeline.StageCompose, 0, pipeline.KindComposition)
	}
	return video, nil
}

func (c *Composer) compose(ctx context.Context, rendered *types.RenderedStoryboard, sc *scratch.Scratch) (*types.FinalVideo, error) {
	var chapterPaths []string
	sceneCount := 0

	for _, ch := range rendered.Chapters {
		var clips []string
		for _, scene := range ch.Scenes {
			if err := ctx.Err(); err != nil {
				return nil, pipeline.NewError(pipeline.KindCancelled, "compose aborted", err)
			}
			clip := sc.TempPath(fmt.Sprintf("clip_%03d.mp4", scene.SceneRef))
			err := c.withTimeoutRetry(ctx, fmt.Sprintf("mux scene %d", scene.SceneRef), func() error {
				return c.tools.MuxStill(ctx, scene.ImagePath, scene.AudioPath, scene.FinalDuration, clip)
			})
			if err != nil {
				return nil, fmt.Errorf("mux scene %d: %w", scene.SceneRef, err)
			}
			clips = append(clips, clip)
			sceneCount++
		}

		chapterPath, err := c.concatChapter(ctx, ch.ChapterID, clips, sc)
		if err != nil {
			return nil, err
		}
		chapterPaths = append(chapterPaths, chapterPath)
	}

	finalPath, err := c.concatFinal(ctx, chapterPaths, sc)
	if err != nil {
		return nil, err
	}

	promoted, err := sc.Promote(finalPath)
	if err != nil {
		return nil, err
	}
	duration, err := c.tools.ProbeDuration(ctx, promoted)
	if err != nil {
		return nil, fmt.Errorf("probe final video: %w", err)
	}
	info, err := os.Stat(promoted)
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindStorage, "stat final video", err)
	}

	c.log.Info("Composition complete",
		"path", promoted, "duration", duration, "scenes", sceneCount)
	return &types.FinalVideo{
		Path:            promoted,
		DurationSeconds: duration,
		ByteSize:        info.Size(),
		SceneCount:      sceneCount,
		ChapterCount:    len(rendered.Chapters),
	}, nil
}

func (c *Composer) concatChapter(ctx context.Context, chapterID int, clips []string, sc *scratch.Scratch) (string, error) {
	if len(clips) == 1 {
		return clips[0], nil
	}
	listPath, err := sc.SaveTemp(media.ConcatList(clips), fmt.Sprintf("chapter_%02d_concat.txt", chapterID))
	if err != nil {
		return "", err
	}
	out := sc.TempPath(fmt.Sprintf("chapter_%02d.mp4", chapterID))
	err = c.withTimeoutRetry(ctx, fmt.Sprintf("concat chapter %d", chapterID), func() error {
		return c.tools.Concat(ctx, listPath, out)
	})
	if err != nil {
		return "", fmt.Errorf("concat chapter %d: %w", chapterID, err)
	}
	for _, clip := range clips {
		_ = os.Remove(clip)
	}
	return out, nil
}

// concatFinal joins chapter videos; a single chapter is already the final
// artifact and skips the extra pass.
func (c *Composer) concatFinal(ctx context.Context, chapterPaths []string, sc *scratch.Scratch) (string, error) {
	if len(chapterPaths) == 1 {
		return chapterPaths[0], nil
	}
	listPath, err := sc.SaveTemp(media.ConcatList(chapterPaths), "final_concat.txt")
	if err != nil {
		return "", err
	}
	out := sc.TempPath("final.mp4")
	err = c.withTimeoutRetry(ctx, "concat final", func() error {
		return c.tools.Concat(ctx, listPath, out)
	})
	if err != nil {
		return "", fmt.Errorf("concat final: %w", err)
	}
	return out, nil
}

// withTimeoutRetry reruns a media-tool step once if it timed out. Non-zero
// exits are fatal; rerunning a genuinely broken command wastes minutes.
func (c *Composer) withTimeoutRetry(ctx context.Context, what string, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if media.IsTimeout(err) && ctx.Err() == nil {
		c.log.Warn("Media step timed out, retrying once", "step", what)
		return op()
	}
	return err
}
