package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

type handlerRef struct{ h ErrorHandler }

var current atomic.Pointer[handlerRef]

func init() {
	current.Store(&handlerRef{h: &LogHandler{}})
}

// SetHandler installs the process-wide error handler. nil restores a
// LogHandler.
func SetHandler(h ErrorHandler) {
	if h == nil {
		h = &LogHandler{}
	}
	current.Store(&handlerRef{h: h})
}

// Handler returns the installed error handler.
func Handler() ErrorHandler {
	return current.Load().h
}

// Report stamps err and passes it to the installed handler.
func Report(err *EmbedderError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleError(err)
}

// ReportPanic passes a recovered panic to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandlePanic(err)
}

// Recover reports a panic of the calling goroutine instead of letting it
// unwind further. It must be deferred directly:
//
//	defer errors.Recover("views.OnBound")
func Recover(op string) {
	if r := recover(); r != nil {
		ReportPanic(&PanicError{Op: op, Value: r, StackTrace: CaptureStack()})
	}
}

// Guard runs fn and reports a panic raised by it. It returns false if fn
// panicked.
func Guard(op string, fn func()) (ok bool) {
	defer Recover(op)
	fn()
	return true
}

// CaptureStack formats the stack of its caller's caller.
func CaptureStack() string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			return sb.String()
		}
	}
}
