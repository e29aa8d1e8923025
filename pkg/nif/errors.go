package nif

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind classifies a format error.
type Kind int

const (
	UnrecognizedHeader Kind = iota + 1
	UnsupportedVersion
	OutOfBounds
	UnknownType
	InvalidReference
	MissingRequiredField
	IOFailure
	LengthMismatch
	SizeMismatch
	InvalidValue
)

var kindNames = map[Kind]string{
	UnrecognizedHeader:   "unrecognized header",
	UnsupportedVersion:   "unsupported version",
	OutOfBounds:          "out of bounds",
	UnknownType:          "unknown type",
	InvalidReference:     "invalid reference",
	MissingRequiredField: "missing required field",
	IOFailure:            "i/o failure",
	LengthMismatch:       "length mismatch",
	SizeMismatch:         "block size mismatch",
	InvalidValue:         "invalid value",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is checks against *Error values.
var (
	ErrUnrecognizedHeader   = errors.New(UnrecognizedHeader.String())
	ErrUnsupportedVersion   = errors.New(UnsupportedVersion.String())
	ErrOutOfBounds          = errors.New(OutOfBounds.String())
	ErrUnknownType          = errors.New(UnknownType.String())
	ErrInvalidReference     = errors.New(InvalidReference.String())
	ErrMissingRequiredField = errors.New(MissingRequiredField.String())
	ErrIOFailure            = errors.New(IOFailure.String())
	ErrLengthMismatch       = errors.New(LengthMismatch.String())
	ErrSizeMismatch         = errors.New(SizeMismatch.String())
	ErrInvalidValue         = errors.New(InvalidValue.String())
)

var sentinels = map[Kind]error{
	UnrecognizedHeader:   ErrUnrecognizedHeader,
	UnsupportedVersion:   ErrUnsupportedVersion,
	OutOfBounds:          ErrOutOfBounds,
	UnknownType:          ErrUnknownType,
	InvalidReference:     ErrInvalidReference,
	MissingRequiredField: ErrMissingRequiredField,
	IOFailure:            ErrIOFailure,
	LengthMismatch:       ErrLengthMismatch,
	SizeMismatch:         ErrSizeMismatch,
	InvalidValue:         ErrInvalidValue,
}

// Error is a format error with enough context to locate the problem in a
// single file: the byte offset, the record index and type, and a dotted
// field path. Offset and Record are -1 when unknown.
type Error struct {
	Kind   Kind
	Offset int
	Record int
	Type   string
	Field  string
	Msg    string
	Err    error
}

// Errorf builds an *Error of the given kind at offset.
func Errorf(kind Kind, offset int, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Offset: offset,
		Record: -1,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	var ctx []string
	if e.Offset >= 0 {
		ctx = append(ctx, fmt.Sprintf("offset %d", e.Offset))
	}
	if e.Record >= 0 {
		ctx = append(ctx, fmt.Sprintf("record %d", e.Record))
	}
	if e.Type != "" {
		ctx = append(ctx, "type "+e.Type)
	}
	if e.Field != "" {
		ctx = append(ctx, fmt.Sprintf("field %q", e.Field))
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// InField returns err with name prepended to its field path. Non-format
// errors are returned unchanged.
func InField(err error, name string) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return err
	}
	switch {
	case fe.Field == "":
		fe.Field = name
	case strings.HasPrefix(fe.Field, "["):
		fe.Field = name + fe.Field
	default:
		fe.Field = name + "." + fe.Field
	}
	return err
}

// InRecord fills in the record index and type on err if not already set.
func InRecord(err error, index int, typeName string) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return err
	}
	if fe.Record < 0 {
		fe.Record = index
	}
	if fe.Type == "" {
		fe.Type = typeName
	}
	return err
}

// KindOf reports the Kind of a format error, or 0 when err is not one.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
