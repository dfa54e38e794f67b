// Package runerr defines the classified error model used across the
// build and execution paths, in the sentinel-error style of
// pipe/middleware/metrics.go (ErrFailure/ErrCancel) plus Unwrap: callers dispatch on Kind via errors.Is
// against the Kind-specific sentinels rather than type-asserting concrete
// error types.
package runerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for exit-code mapping (CLI) and error-shape
// reporting (HTTP driver), per §7.
type Kind string

const (
	KindParseError       Kind = "ParseError"
	KindUnknownElement   Kind = "UnknownElement"
	KindSchemaMismatch   Kind = "SchemaMismatch"
	KindTemplateError    Kind = "TemplateError"
	KindExpressionError  Kind = "ExpressionError"
	KindElementInitError Kind = "ElementInitError"
	KindItemError        Kind = "ItemError"
	KindResourceError    Kind = "ResourceError"
	KindCancelled        Kind = "Cancelled"
	KindInternalError    Kind = "InternalError"
)

// sentinel is the Kind-identifying error that every Error of that Kind
// wraps, so errors.Is(err, ErrUnknownElement) works regardless of the
// specific message or stage attached.
var sentinels = map[Kind]error{
	KindParseError:       errors.New("parse error"),
	KindUnknownElement:   errors.New("unknown element"),
	KindSchemaMismatch:   errors.New("schema mismatch"),
	KindTemplateError:    errors.New("template error"),
	KindExpressionError:  errors.New("expression error"),
	KindElementInitError: errors.New("element init error"),
	KindItemError:        errors.New("item error"),
	KindResourceError:    errors.New("resource error"),
	KindCancelled:        errors.New("cancelled"),
	KindInternalError:    errors.New("internal error"),
}

var (
	ErrParseError       = sentinels[KindParseError]
	ErrUnknownElement   = sentinels[KindUnknownElement]
	ErrSchemaMismatch   = sentinels[KindSchemaMismatch]
	ErrTemplateError    = sentinels[KindTemplateError]
	ErrExpressionError  = sentinels[KindExpressionError]
	ErrElementInitError = sentinels[KindElementInitError]
	ErrItemError        = sentinels[KindItemError]
	ErrResourceError    = sentinels[KindResourceError]
	ErrCancelled        = sentinels[KindCancelled]
	ErrInternalError    = sentinels[KindInternalError]
)

// Error carries a classified failure plus the reproduction fields named
// in §7: {kind, message, stage_index?, stage_id?, item_index?}.
type Error struct {
	Kind       Kind
	Message    string
	StageIndex int
	StageID    string
	ItemIndex  int
	// HasStage/HasItem distinguish "field legitimately absent" from the
	// zero value, since StageIndex/ItemIndex 0 is a valid position.
	HasStage bool
	HasItem  bool

	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.HasStage {
		msg = fmt.Sprintf("%s (stage %d %q)", msg, e.StageIndex, e.StageID)
	}
	if e.HasItem {
		msg = fmt.Sprintf("%s (item %d)", msg, e.ItemIndex)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return errors.Join(sentinels[e.Kind], e.Cause)
	}
	return sentinels[e.Kind]
}

// New constructs a classified error with no stage/item context.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a classified error around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithStage returns a copy of e annotated with stage position.
func (e *Error) WithStage(index int, id string) *Error {
	cp := *e
	cp.StageIndex = index
	cp.StageID = id
	cp.HasStage = true
	return &cp
}

// WithItem returns a copy of e annotated with the item index being
// processed when the failure occurred.
func (e *Error) WithItem(index int) *Error {
	cp := *e
	cp.ItemIndex = index
	cp.HasItem = true
	return &cp
}

// Is reports the Kind of err, if err is (or wraps) a *Error or a Kind
// sentinel.
func Is(err error, kind Kind) bool {
	return errors.Is(err, sentinels[kind])
}

// As extracts the *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ExitCode maps a run-terminating error to the CLI exit codes of §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case Is(err, KindUnknownElement):
		return 3
	case Is(err, KindSchemaMismatch):
		return 4
	default:
		return 1
	}
}
