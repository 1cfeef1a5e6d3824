package analyzer

import (
	"strings"
	"testing"

	"github.com/noveltoon/backend/internal/types"
)

func TestSplitChunksSingleWindow(t *testing.T) {
	chunks := splitChunks("short text", 3000)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("small input split into %d chunks", len(chunks))
	}
}

func TestSplitChunksPrefersParagraphBoundaries(t *testing.T) {
	p1 := strings.Repeat("a", 40)
	p2 := strings.Repeat("b", 40)
	p3 := strings.Repeat("c", 40)
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	chunks := splitChunks(text, 90)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for _, c := range chunks {
		if strings.Contains(c, "ab") || strings.Contains(c, "bc") {
			t.Fatalf("chunk crosses a paragraph boundary mid-paragraph: %q", c)
		}
	}
}

func TestSplitChunksHardCutsOversizedParagraph(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := splitChunks(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if len(c) > 100 {
			t.Fatalf("chunk exceeds window: %d runes", len(c))
		}
		total += len(c)
	}
	if total != 250 {
		t.Fatalf("hard cut lost text: %d of 250 runes", total)
	}
}

func TestMergeCharacterNonEmptyWins(t *testing.T) {
	acc := &types.AnalyzedText{
		Characters: []types.Character{{
			Name:       "Mei",
			Appearance: types.Appearance{Gender: types.GenderFemale, Hair: ""},
		}},
	}
	mergeCharacter(acc, types.Character{
		Name:       "Mei",
		Appearance: types.Appearance{Hair: "black", Eyes: "brown"},
	})

	got := acc.Characters[0].Appearance
	if got.Hair != "black" || got.Eyes != "brown" {
		t.Fatalf("non-empty attributes not merged: %+v", got)
	}
	if got.Gender != types.GenderFemale {
		t.Fatalf("existing non-empty attribute overwritten")
	}
}

func TestMergeCharacterFirstOccurrenceWinsOnConflict(t *testing.T) {
	acc := &types.AnalyzedText{
		Characters: []types.Character{{
			Name:       "Mei",
			Appearance: types.Appearance{Hair: "black"},
		}},
	}
	mergeCharacter(acc, types.Character{
		Name:       "Mei",
		Appearance: types.Appearance{Hair: "silver"},
	})
	if acc.Characters[0].Appearance.Hair != "black" {
		t.Fatalf("conflicting attribute replaced first occurrence")
	}
}

func TestMergeCharacterAccumulatesAgeVariants(t *testing.T) {
	acc := &types.AnalyzedText{
		Characters: []types.Character{{
			Name:       "Chen",
			Appearance: types.Appearance{Gender: types.GenderMale, AgeStage: types.AgeAdult},
		}},
	}
	mergeCharacter(acc, types.Character{
		Name:       "Chen",
		Appearance: types.Appearance{AgeStage: types.AgeElder, Hair: "white"},
	})
	// Same stage again must not duplicate the variant.
	mergeCharacter(acc, types.Character{
		Name:       "Chen",
		Appearance: types.Appearance{AgeStage: types.AgeElder},
	})

	variants := acc.Characters[0].AgeVariants
	if len(variants) != 1 || variants[0].AgeStage != types.AgeElder {
		t.Fatalf("age variants = %+v, want one elder entry", variants)
	}
}

func TestMergeAnalysesOffsetsPlotPoints(t *testing.T) {
	first := &types.AnalyzedText{
		Characters: []types.Character{{Name: "Mei"}},
		Chapters: []types.Chapter{{ChapterID: 1, Scenes: []types.Scene{
			{SceneID: 1}, {SceneID: 2},
		}}},
		PlotPoints: []types.PlotPoint{{SceneRef: 1, Kind: types.PlotNormal}},
	}
	second := &types.AnalyzedText{
		Characters: []types.Character{{Name: "Chen"}},
		Chapters: []types.Chapter{{ChapterID: 1, Scenes: []types.Scene{
			{SceneID: 1},
		}}},
		PlotPoints: []types.PlotPoint{{SceneRef: 1, Kind: types.PlotClimax}},
	}

	merged := mergeAnalyses(first, second)
	if merged.SceneCount() != 3 {
		t.Fatalf("scene count = %d, want 3", merged.SceneCount())
	}
	if len(merged.Characters) != 2 {
		t.Fatalf("character union size = %d, want 2", len(merged.Characters))
	}
	last := merged.PlotPoints[len(merged.PlotPoints)-1]
	if last.SceneRef != 3 {
		t.Fatalf("second chunk's plot point ref = %d, want 3 (offset by first chunk)", last.SceneRef)
	}
}
