package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories a job can surface.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindModelOutput     Kind = "ModelOutputError"
	KindExternalService Kind = "ExternalServiceError"
	KindRender          Kind = "RenderError"
	KindComposition     Kind = "CompositionError"
	KindStorage         Kind = "StorageError"
	KindCancelled       Kind = "Cancelled"
)

type Error struct {
	Kind    Kind
	Stage   string
	SceneID int
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s [stage=%s]", msg, e.Stage)
	}
	if e.SceneID > 0 {
		msg = fmt.Sprintf("%s [scene=%d]", msg, e.SceneID)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

func ModelOutputf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindModelOutput, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the pipeline Kind from an error chain. Plain context
// cancellation maps to Cancelled; anything else unrecognized maps to
// ExternalServiceError so a job never fails with an unnamed kind.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindExternalService
}

// DetailOf returns a best-effort human detail string for an error chain,
// prefixed with the scene number when the failure is scene-scoped.
func DetailOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		var detail string
		switch {
		case pe.Detail != "" && pe.Err != nil:
			detail = fmt.Sprintf("%s: %v", pe.Detail, pe.Err)
		case pe.Detail != "":
			detail = pe.Detail
		case pe.Err != nil:
			detail = pe.Err.Error()
		default:
			detail = string(pe.Kind)
		}
		if pe.SceneID > 0 {
			return fmt.Sprintf("scene %d: %s", pe.SceneID, detail)
		}
		return detail
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Tag annotates err with the stage name (and scene id, when sceneID > 0)
// without losing its kind. Non-pipeline errors get wrapped under fallback.
func Tag(err error, stage string, sceneID int, fallback Kind) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		out := *pe
		if out.Stage == "" {
			out.Stage = stage
		}
		if out.SceneID == 0 {
			out.SceneID = sceneID
		}
		return &out
	}
	kind := fallback
	if errors.Is(err, context.Canceled) {
		kind = KindCancelled
	}
	return &Error{Kind: kind, Stage: stage, SceneID: sceneID, Err: err}
}

// IsCancelled reports whether the chain terminates in a cooperative cancel.
func IsCancelled(err error) bool {
	var pe *Error
	if errors.As(err, &pe) && pe.Kind == KindCancelled {
		return true
	}
	return errors.Is(err, context.Canceled)
}
