package analyzer

import (
	"strings"

	"github.com/noveltoon/backend/internal/types"
)

// splitChunks windows the text at roughly chunkSize runes, preferring
// paragraph boundaries so a scene is not cut mid-sentence.
func splitChunks(text string, chunkSize int) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
			curLen = 0
		}
	}

	for _, p := range paragraphs {
		pLen := len([]rune(p))
		if pLen > chunkSize {
			// A single oversized paragraph gets hard-cut.
			flush()
			pr := []rune(p)
			for start := 0; start < len(pr); start += chunkSize {
				end := start + chunkSize
				if end > len(pr) {
					end = len(pr)
				}
				chunks = append(chunks, string(pr[start:end]))
			}
			continue
		}
		if curLen > 0 && curLen+pLen+2 > chunkSize {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(p)
		curLen += pLen
	}
	flush()
	return chunks
}

// mergeAnalyses folds a later chunk's analysis into the accumulated one.
// Characters union by name; chapters append in reading order; plot point
// scene refs shift by the scenes already accumulated.
func mergeAnalyses(acc, next *types.AnalyzedText) *types.AnalyzedText {
	if acc == nil {
		return next
	}
	offset := acc.SceneCount()

	for _, c := range next.Characters {
		mergeCharacter(acc, c)
	}
	acc.Chapters = append(acc.Chapters, next.Chapters...)
	for _, pp := range next.PlotPoints {
		pp.SceneRef += offset
		acc.PlotPoints = append(acc.PlotPoints, pp)
	}
	return acc
}

// mergeCharacter unions one character into the set. On attribute conflict
// a non-empty value beats an empty one; two non-empty values keep the
// first occurrence. Distinct age stages accumulate as age variants.
func mergeCharacter(acc *types.AnalyzedText, c types.Character) {
	for i := range acc.Characters {
		if acc.Characters[i].Name != c.Name {
			continue
		}
		existing := &acc.Characters[i]
		mergeAppearance(&existing.Appearance, c.Appearance)
		if existing.Personality == "" {
			existing.Personality = c.Personality
		}
		if existing.Role == "" {
			existing.Role = c.Role
		}
		if c.Appearance.AgeStage != "" &&
			c.Appearance.AgeStage != existing.Appearance.AgeStage &&
			c.Appearance.AgeStage != types.AgeUnknown &&
			!hasAgeVariant(existing.AgeVariants, c.Appearance.AgeStage) {
			existing.AgeVariants = append(existing.AgeVariants, types.AgeVariant{
				AgeStage:   c.Appearance.AgeStage,
				Appearance: c.Appearance,
			})
		}
		return
	}
	acc.Characters = append(acc.Characters, c)
}

func mergeAppearance(dst *types.Appearance, src types.Appearance) {
	if dst.Gender == "" || dst.Gender == types.GenderUnknown {
		if src.Gender != "" {
			dst.Gender = src.Gender
		}
	}
	if dst.Age == 0 {
		dst.Age = src.Age
	}
	if dst.AgeStage == "" || dst.AgeStage == types.AgeUnknown {
		if src.AgeStage != "" {
			dst.AgeStage = src.AgeStage
		}
	}
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.Hair, src.Hair)
	fill(&dst.Eyes, src.Eyes)
	fill(&dst.Clothing, src.Clothing)
	fill(&dst.Features, src.Features)
	fill(&dst.BodyType, src.BodyType)
	fill(&dst.Height, src.Height)
	fill(&dst.Skin, src.Skin)
}

func hasAgeVariant(variants []types.AgeVariant, stage types.AgeStage) bool {
	for _, v := range variants {
		if v.AgeStage == stage {
			return true
		}
	}
	return false
}
