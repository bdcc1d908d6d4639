// Package cinerr defines the typed error taxonomy used across the pipeline.
//
// Every surfaced error carries a Kind, an optional file path, the
// underlying cause, and a one-line actionable hint. No raw subprocess
// output is ever wrapped directly into a surfaced message.
package cinerr

import "fmt"

// Kind classifies an error for exit-code mapping and recovery policy.
type Kind string

const (
	KindInput           Kind = "input"
	KindMedia           Kind = "media"
	KindSubtitle        Kind = "subtitle"
	KindInference       Kind = "inference"
	KindVram            Kind = "vram"
	KindCacheCorruption Kind = "cache_corruption"
	KindAssembly        Kind = "assembly"
	KindMixPlan         Kind = "mix_plan"
	KindUserAbort       Kind = "user_abort"
)

// Error is the concrete typed error carried through the pipeline.
type Error struct {
	Kind Kind
	Path string // file path implicated, if any
	Hint string // one-line actionable hint for the user
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, path, hint string, err error) *Error {
	return &Error{Kind: kind, Path: path, Hint: hint, Err: err}
}

func Input(path, hint string, err error) *Error    { return new_(KindInput, path, hint, err) }
func Media(path, hint string, err error) *Error    { return new_(KindMedia, path, hint, err) }
func Subtitle(path, hint string, err error) *Error { return new_(KindSubtitle, path, hint, err) }
func Inference(hint string, err error) *Error      { return new_(KindInference, "", hint, err) }
func Vram(hint string, err error) *Error           { return new_(KindVram, "", hint, err) }
func CacheCorruption(path string, err error) *Error {
	return new_(KindCacheCorruption, path, "cache will be rebuilt", err)
}
func Assembly(hint string, err error) *Error { return new_(KindAssembly, "", hint, err) }
func MixPlan(hint string, err error) *Error  { return new_(KindMixPlan, "", hint, err) }
func UserAbort() *Error                      { return new_(KindUserAbort, "", "interrupted", nil) }

// ExitCode maps a Kind to the process exit code described in spec.md §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if asError(err, &e) && e.Kind == KindUserAbort {
		return 130
	}
	return 1
}

// asError is a small local errors.As to avoid importing errors just for this.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Recoverable reports whether kind is one the pipeline may fall back from
// locally instead of aborting the run, per spec.md §7 propagation policy.
func Recoverable(kind Kind) bool {
	switch kind {
	case KindCacheCorruption:
		return true
	default:
		return false
	}
}

func Wrapf(kind Kind, hint string, format string, args ...interface{}) *Error {
	return new_(kind, "", hint, fmt.Errorf(format, args...))
}
