package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed validation", Validationf("too short"), KindValidation},
		{"wrapped typed", fmt.Errorf("stage: %w", ModelOutputf("bad json")), KindModelOutput},
		{"context canceled", context.Canceled, KindCancelled},
		{"plain error", errors.New("boom"), KindExternalService},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTagPreservesKind(t *testing.T) {
	base := NewError(KindExternalService, "retries exhausted", errors.New("http 503"))
	tagged := Tag(fmt.Errorf("render image: %w", base), StageRender, 2, KindRender)

	if tagged.Kind != KindExternalService {
		t.Fatalf("Tag changed kind to %v", tagged.Kind)
	}
	if tagged.Stage != StageRender || tagged.SceneID != 2 {
		t.Fatalf("Tag did not annotate stage/scene: %+v", tagged)
	}
}

func TestTagWrapsPlainError(t *testing.T) {
	tagged := Tag(errors.New("exit status 1"), StageCompose, 0, KindComposition)
	if tagged.Kind != KindComposition {
		t.Fatalf("fallback kind = %v, want %v", tagged.Kind, KindComposition)
	}

	var pe *Error
	if !errors.As(tagged, &pe) {
		t.Fatalf("tagged error is not a pipeline error")
	}
}

func TestTagDoesNotOverwriteExistingScene(t *testing.T) {
	inner := &Error{Kind: KindRender, SceneID: 7}
	tagged := Tag(inner, StageRender, 3, KindRender)
	if tagged.SceneID != 7 {
		t.Fatalf("SceneID = %d, want 7", tagged.SceneID)
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(NewError(KindCancelled, "cancelled during backoff", context.Canceled)) {
		t.Fatalf("typed cancel not detected")
	}
	if !IsCancelled(fmt.Errorf("op: %w", context.Canceled)) {
		t.Fatalf("wrapped context.Canceled not detected")
	}
	if IsCancelled(Validationf("nope")) {
		t.Fatalf("validation error misread as cancel")
	}
}
