// Package pixelerr provides the daemon's unified error taxonomy.
package pixelerr

import (
	"errors"
	"fmt"
)

// Code identifies a taxonomy member.
type Code string

const (
	// Registry/lookup errors.
	CodeInvalidScene  Code = "REG_INVALID_SCENE"
	CodeDuplicateName Code = "REG_DUPLICATE_NAME"
	CodeUnknownScene  Code = "REG_UNKNOWN_SCENE"

	// Router-level validation.
	CodeInvalidPayload Code = "ROUTER_INVALID_PAYLOAD"

	// Driver operations.
	CodeDrawError Code = "DRIVER_DRAW_ERROR"
	CodePushError Code = "DRIVER_PUSH_ERROR"

	// Scene-raised render errors.
	CodeRenderError      Code = "SCENE_RENDER_ERROR"
	CodeFatalRenderError Code = "SCENE_FATAL_RENDER_ERROR"

	// Scene switch.
	CodeSwitchTimeout Code = "SWITCH_TIMEOUT"

	// Bootstrap-only, fatal.
	CodeConfigError Code = "CONFIG_ERROR"
)

// PixelError is a structured error carrying a taxonomy code, a device host
// (when applicable), and an optional wrapped cause.
type PixelError struct {
	Code    Code
	Message string
	Host    string
	Details map[string]any
	Err     error
}

func (e *PixelError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Host != "" {
		prefix = fmt.Sprintf("%s host=%s", prefix, e.Host)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

func (e *PixelError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair and returns the error for chaining.
func (e *PixelError) WithDetails(key string, value any) *PixelError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New builds a PixelError with no wrapped cause.
func New(code Code, message string) *PixelError {
	return &PixelError{Code: code, Message: message}
}

// Wrap builds a PixelError wrapping an existing error.
func Wrap(code Code, message string, err error) *PixelError {
	return &PixelError{Code: code, Message: message, Err: err}
}

// ForHost attaches the device host the error pertains to.
func (e *PixelError) ForHost(host string) *PixelError {
	e.Host = host
	return e
}

// Constructors mirroring each taxonomy member.

func InvalidScene(name, reason string) *PixelError {
	return New(CodeInvalidScene, "invalid scene").WithDetails("name", name).WithDetails("reason", reason)
}

func DuplicateName(name string) *PixelError {
	return New(CodeDuplicateName, "scene name already registered").WithDetails("name", name)
}

func UnknownScene(name string) *PixelError {
	return New(CodeUnknownScene, "scene not found").WithDetails("name", name)
}

func InvalidPayload(topic, reason string) *PixelError {
	return New(CodeInvalidPayload, "invalid command payload").WithDetails("topic", topic).WithDetails("reason", reason)
}

func DrawError(op string, err error) *PixelError {
	return Wrap(CodeDrawError, "draw operation failed", err).WithDetails("op", op)
}

func PushError(err error) *PixelError {
	return Wrap(CodePushError, "push failed", err)
}

func RenderError(scene string, err error) *PixelError {
	return Wrap(CodeRenderError, "scene render failed", err).WithDetails("scene", scene)
}

func FatalRenderError(scene string, err error) *PixelError {
	return Wrap(CodeFatalRenderError, "scene render failed fatally", err).WithDetails("scene", scene)
}

func SwitchTimeout(host, fromScene string) *PixelError {
	return New(CodeSwitchTimeout, "timed out waiting for outgoing scene to stop").
		ForHost(host).WithDetails("from_scene", fromScene)
}

func ConfigError(reason string, err error) *PixelError {
	return Wrap(CodeConfigError, reason, err)
}

// IsFatal reports whether code should unwind to the process boundary.
// Only ConfigError is fatal, and only during bootstrap.
func IsFatal(err error) bool {
	var pe *PixelError
	if errors.As(err, &pe) {
		return pe.Code == CodeConfigError
	}
	return false
}

// IsFatalRender reports whether a scene's render error is the fatal variant.
func IsFatalRender(err error) bool {
	var pe *PixelError
	if errors.As(err, &pe) {
		return pe.Code == CodeFatalRenderError
	}
	return false
}

// As extracts a *PixelError from an error chain.
func As(err error) (*PixelError, bool) {
	var pe *PixelError
	ok := errors.As(err, &pe)
	return pe, ok
}
