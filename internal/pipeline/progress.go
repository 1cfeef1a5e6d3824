package pipeline

// Stage labels, in execution order.
const (
	StageInit       = "init"
	StageAnalyze    = "analyze"
	StageStoryboard = "storyboard"
	StageRender     = "render"
	StageCompose    = "compose"
	StageDone       = "done"
)

// Fixed progress bands per stage. Render's band is subdivided linearly
// across completed scenes.
var bands = map[string][2]int{
	StageInit:       {0, 0},
	StageAnalyze:    {0, 20},
	StageStoryboard: {20, 30},
	StageRender:     {30, 70},
	StageCompose:    {70, 100},
	StageDone:       {100, 100},
}

func BandStart(stage string) int {
	if b, ok := bands[stage]; ok {
		return b[0]
	}
	return 0
}

func BandEnd(stage string) int {
	if b, ok := bands[stage]; ok {
		return b[1]
	}
	return 0
}

// RenderProgress maps scenes-completed onto the render band.
func RenderProgress(completed, total int) int {
	start, end := BandStart(StageRender), BandEnd(StageRender)
	if total <= 0 {
		return start
	}
	if completed >= total {
		return end
	}
	if completed < 0 {
		completed = 0
	}
	return start + (end-start)*completed/total
}
