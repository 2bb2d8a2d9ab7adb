// Package errors provides structured error reporting for the embedder.
//
// Operations return errors to their callers as usual. In addition, contract
// violations, transport failures and degraded frames are reported to a
// process-wide [ErrorHandler] so they reach a diagnostic channel even when
// the caller discards the returned error.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Sentinel errors wrapped by [EmbedderError].
var (
	// ErrFrameOpen is returned by BeginFrame while a frame is already open.
	ErrFrameOpen = stderrors.New("frame already open")
	// ErrNoFrame is returned by frame operations called outside BeginFrame/EndFrame.
	ErrNoFrame = stderrors.New("no frame open")
	// ErrFrameNotEnded is returned by SubmitFrame before EndFrame.
	ErrFrameNotEnded = stderrors.New("frame not ended")
	// ErrDuplicateView is returned when creating a view whose id is still live.
	ErrDuplicateView = stderrors.New("view already exists")
	// ErrUnknownView is returned when operating on a view id that is not live.
	ErrUnknownView = stderrors.New("unknown view")
	// ErrViewAlreadyPrerolled is returned when a view is prerolled twice in one frame.
	ErrViewAlreadyPrerolled = stderrors.New("view already prerolled in this frame")
	// ErrViewNotPrerolled is returned when compositing a view that was not prerolled.
	ErrViewNotPrerolled = stderrors.New("view not prerolled in this frame")
)

// ErrorKind groups errors by the component that failed.
type ErrorKind int

const (
	// KindUnknown is the zero ErrorKind.
	KindUnknown ErrorKind = iota
	// KindContract indicates a caller contract violation.
	KindContract
	// KindTransport indicates a failure talking to the compositor.
	KindTransport
	// KindSurface indicates a failure producing or rasterizing a surface.
	KindSurface
	// KindConfig indicates an invalid configuration.
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindTransport:
		return "transport"
	case KindSurface:
		return "surface"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// NoView is the ViewID of errors that do not concern a particular view.
const NoView int64 = -1

// EmbedderError is an error raised by one embedder operation.
type EmbedderError struct {
	Op     string // e.g. "embedder.CreateView"
	Kind   ErrorKind
	ViewID int64 // NoView if no view is concerned
	Err    error

	StackTrace string    // set for contract violations
	Timestamp  time.Time // set by Report if zero
}

// New returns an EmbedderError that does not concern a particular view.
func New(op string, kind ErrorKind, err error) *EmbedderError {
	return &EmbedderError{Op: op, Kind: kind, ViewID: NoView, Err: err}
}

// ForView returns an EmbedderError about the given view.
func ForView(op string, kind ErrorKind, viewID int64, err error) *EmbedderError {
	return &EmbedderError{Op: op, Kind: kind, ViewID: viewID, Err: err}
}

func (e *EmbedderError) Error() string {
	if e.ViewID != NoView {
		return fmt.Sprintf("%s [%s] view=%d: %v", e.Op, e.Kind, e.ViewID, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *EmbedderError) Unwrap() error {
	return e.Err
}

// PanicError describes a panic raised by caller-supplied code, such as a
// view lifecycle callback, and recovered by the embedder.
type PanicError struct {
	Op         string
	Value      any
	StackTrace string
	Timestamp  time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives everything passed to Report and ReportPanic.
// Handlers may be called from any goroutine.
type ErrorHandler interface {
	HandleError(err *EmbedderError)
	HandlePanic(err *PanicError)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
