package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/noveltoon/backend/internal/clients/llm"
	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/pipeline"
	"github.com/noveltoon/backend/internal/retry"
	"github.com/noveltoon/backend/internal/types"
)

// WarnFunc receives non-fatal analysis notices (cap truncation and the
// like) so the orchestrator can surface them as progress messages.
type WarnFunc func(msg string)

// Analyzer drives stage 1: novel text in, AnalyzedText out.
type Analyzer struct {
	client llm.Analyzer
	log    *logger.Logger
}

func New(client llm.Analyzer, log *logger.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		log:    log.With("service", "text_analyzer"),
	}
}

func (a *Analyzer) Analyze(ctx context.Context, text string, opts types.Options, warn WarnFunc) (*types.AnalyzedText, error) {
	if warn == nil {
		warn = func(string) {}
	}
	if utf8.RuneCountInString(text) < opts.MinTextLength {
		return nil, pipeline.Validationf("input text too short: %d chars, need at least %d",
			utf8.RuneCountInString(text), opts.MinTextLength)
	}

	var (
		result *types.AnalyzedText
		err    error
	)
	switch opts.AnalyzerMode {
	case types.AnalyzerSimple:
		result, err = a.analyzeWindow(ctx, text, opts)
	case types.AnalyzerChunked:
		result, err = a.analyzeChunked(ctx, text, opts)
	default:
		return nil, pipeline.Validationf("unknown analyzer mode %q", opts.AnalyzerMode)
	}
	if err != nil {
		return nil, err
	}

	if len(result.Characters) == 0 || result.SceneCount() == 0 {
		return nil, pipeline.Validationf("analysis produced no usable characters or scenes")
	}

	a.promoteUnknownSpeakers(result)
	a.applyCaps(result, opts, warn)
	renumber(result)

	a.log.Info("Analysis complete",
		"characters", len(result.Characters),
		"chapters", len(result.Chapters),
		"scenes", result.SceneCount())
	return result, nil
}

func (a *Analyzer) analyzeChunked(ctx context.Context, text string, opts types.Options) (*types.AnalyzedText, error) {
	chunks := splitChunks(text, opts.ChunkSize)
	if len(chunks) == 1 {
		return a.analyzeWindow(ctx, chunks[0], opts)
	}

	a.log.Info("Analyzing in chunks", "chunks", len(chunks), "chunk_size", opts.ChunkSize)
	var merged *types.AnalyzedText
	for i, chunk := range chunks {
		part, err := a.analyzeWindow(ctx, chunk, opts)
		if err != nil {
			return nil, fmt.Errorf("analyze chunk %d/%d: %w", i+1, len(chunks), err)
		}
		merged = mergeAnalyses(merged, part)
	}
	return merged, nil
}

func (a *Analyzer) analyzeWindow(ctx context.Context, text string, opts types.Options) (*types.AnalyzedText, error) {
	user := fmt.Sprintf("Extract at most %d characters and %d scenes.\n\nNovel text:\n%s",
		opts.MaxCharacters, opts.MaxScenes, text)

	raw, err := retry.Do(ctx, retryPolicy(opts), retry.DefaultClassifier,
		func(ctx context.Context) (json.RawMessage, error) {
			return a.client.AnalyzeJSON(ctx, systemPrompt, user)
		})
	if err != nil {
		return nil, err
	}
	return parseAnalysis(raw)
}

func parseAnalysis(raw json.RawMessage) (*types.AnalyzedText, error) {
	var out types.AnalyzedText
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, pipeline.NewError(pipeline.KindModelOutput, "analysis JSON did not match schema", err)
	}
	if out.Chapters == nil {
		return nil, pipeline.ModelOutputf("analysis JSON missing chapters")
	}
	if out.Characters == nil {
		return nil, pipeline.ModelOutputf("analysis JSON missing characters")
	}
	return &out, nil
}

// promoteUnknownSpeakers makes every referenced name a known character so
// downstream stages never look up a missing one.
func (a *Analyzer) promoteUnknownSpeakers(at *types.AnalyzedText) {
	known := make(map[string]bool, len(at.Characters))
	for _, c := range at.Characters {
		known[c.Name] = true
	}
	promote := func(name string) {
		if name == "" || known[name] {
			return
		}
		known[name] = true
		at.Characters = append(at.Characters, types.Character{
			Name: name,
			Appearance: types.Appearance{
				Gender:   types.GenderUnknown,
				AgeStage: types.AgeUnknown,
			},
		})
		a.log.Debug("Promoted unknown speaker to character", "name", name)
	}
	for _, ch := range at.Chapters {
		for _, sc := range ch.Scenes {
			for _, line := range sc.Dialogue {
				promote(line.Speaker)
			}
			for _, name := range sc.Characters {
				promote(name)
			}
		}
	}
}

// applyCaps enforces max_scenes (truncate from the tail) and
// max_characters (drop lowest-mention names first).
func (a *Analyzer) applyCaps(at *types.AnalyzedText, opts types.Options, warn WarnFunc) {
	if total := at.SceneCount(); total > opts.MaxScenes {
		warn(fmt.Sprintf("scene count %d exceeds cap %d, truncating", total, opts.MaxScenes))
		remaining := opts.MaxScenes
		var kept []types.Chapter
		for _, ch := range at.Chapters {
			if remaining == 0 {
				break
			}
			if len(ch.Scenes) > remaining {
				ch.Scenes = ch.Scenes[:remaining]
			}
			remaining -= len(ch.Scenes)
			kept = append(kept, ch)
		}
		at.Chapters = kept
		trimPlotPoints(at, opts.MaxScenes)
	}

	if len(at.Characters) <= opts.MaxCharacters {
		return
	}
	warn(fmt.Sprintf("character count %d exceeds cap %d, dropping least mentioned",
		len(at.Characters), opts.MaxCharacters))

	mentions := make(map[string]int, len(at.Characters))
	for _, ch := range at.Chapters {
		for _, sc := range ch.Scenes {
			for _, name := range sc.Characters {
				mentions[name]++
			}
			for _, line := range sc.Dialogue {
				mentions[line.Speaker]++
			}
		}
	}
	chars := append([]types.Character(nil), at.Characters...)
	sort.SliceStable(chars, func(i, j int) bool {
		return mentions[chars[i].Name] > mentions[chars[j].Name]
	})
	at.Characters = chars[:opts.MaxCharacters]
}

func trimPlotPoints(at *types.AnalyzedText, maxScene int) {
	var kept []types.PlotPoint
	for _, pp := range at.PlotPoints {
		if pp.SceneRef <= maxScene {
			kept = append(kept, pp)
		}
	}
	at.PlotPoints = kept
}

// renumber makes scene ids sequential within each chapter and chapter ids
// sequential overall.
func renumber(at *types.AnalyzedText) {
	for ci := range at.Chapters {
		at.Chapters[ci].ChapterID = ci + 1
		for si := range at.Chapters[ci].Scenes {
			at.Chapters[ci].Scenes[si].SceneID = si + 1
		}
	}
}

func retryPolicy(opts types.Options) retry.Policy {
	return retry.DefaultPolicy(opts.RetryAttempts)
}
