// Package errors provides structured error handling for the danmaku engine.
//
// Runtime conditions the engine can recover from (placement failure, a bad
// row in a comment file) never surface as errors at all. What remains is
// I/O and parsing, reported as [DanmakuError], and lifetime bugs such as
// releasing a pooled object twice, which panic with a [PoolError].
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindParsing indicates a dataset or config decoding failure.
	KindParsing
	// KindConfig indicates an invalid configuration value.
	KindConfig
	// KindPool indicates misuse of a render object pool.
	KindPool
	// KindRender indicates a failure in a render surface.
	KindRender
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindIO indicates a file or network failure.
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindParsing:
		return "parsing"
	case KindConfig:
		return "config"
	case KindPool:
		return "pool"
	case KindRender:
		return "render"
	case KindPanic:
		return "panic"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// DanmakuError represents a structured error in the engine.
type DanmakuError struct {
	// Op is the operation that failed (e.g., "item.LoadDataset").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Source names the file or stream involved, if any.
	Source string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *DanmakuError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s [%s] source=%s: %v", e.Op, e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *DanmakuError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "engine.Frame").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// PoolError describes a render object lifetime bug: releasing an object
// twice or releasing one the pool never lent out. It is always raised with
// panic, never returned.
type PoolError struct {
	// Op is the pool operation (e.g., "pool.Release").
	Op string
	// Type names the visual type of the pool involved, if known.
	Type string
	// Reason describes the violation.
	Reason string
}

func (e *PoolError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s [%s pool]: %s", e.Op, e.Type, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// ErrorHandler receives errors reported by the engine.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *DanmakuError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
