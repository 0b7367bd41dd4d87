package codec

import "fmt"

// ErrorKind classifies codec failures.
type ErrorKind uint8

const (
	TokenizeError ErrorKind = iota + 1
	UnknownField
	RepetitionMismatch
	TypeMismatch
	DuplicateField
	IncompleteStruct
	UnknownEnumName
	UnsupportedRoot
	UnbalancedInput
	DepthExceeded
	MalformedBuffer
)

var errorKindNames = map[ErrorKind]string{
	TokenizeError:      "tokenize error",
	UnknownField:       "unknown field",
	RepetitionMismatch: "repetition mismatch",
	TypeMismatch:       "type mismatch",
	DuplicateField:     "duplicate field",
	IncompleteStruct:   "incomplete struct",
	UnknownEnumName:    "unknown enum name",
	UnsupportedRoot:    "unsupported root",
	UnbalancedInput:    "unbalanced input",
	DepthExceeded:      "depth exceeded",
	MalformedBuffer:    "malformed buffer",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrTokenize           = &Error{Kind: TokenizeError}
	ErrUnknownField       = &Error{Kind: UnknownField}
	ErrRepetitionMismatch = &Error{Kind: RepetitionMismatch}
	ErrTypeMismatch       = &Error{Kind: TypeMismatch}
	ErrDuplicateField     = &Error{Kind: DuplicateField}
	ErrIncompleteStruct   = &Error{Kind: IncompleteStruct}
	ErrUnknownEnumName    = &Error{Kind: UnknownEnumName}
	ErrUnsupportedRoot    = &Error{Kind: UnsupportedRoot}
	ErrUnbalancedInput    = &Error{Kind: UnbalancedInput}
	ErrDepthExceeded      = &Error{Kind: DepthExceeded}
	ErrMalformedBuffer    = &Error{Kind: MalformedBuffer}
)

// Error is returned by Encode and Print.
type Error struct {
	Kind ErrorKind
	// Field is the offending field name, when there is one.
	Field string
	Msg   string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Msg)
	case e.Field != "":
		return fmt.Sprintf("%s: field %q", e.Kind, e.Field)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind.String()
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}
