/*
An OperatorSpec describes one collective operator instance inside a group:
which collective it is, which task is its root, and which codec (and, for
reduce, which reduction) the runtime should use for payloads.

Payload types never reach this layer. Codec and ReduceFunction are
references; only their names are written into task configuration and the
runtime resolves them on the worker.
*/
package groupcomm

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind is the collective pattern of an operator.
type Kind int

const (
	KindInvalid Kind = iota
	Broadcast
	Reduce
	Scatter
)

func (k Kind) String() string {
	switch k {
	case Broadcast:
		return "broadcast"
	case Reduce:
		return "reduce"
	case Scatter:
		return "scatter"
	default:
		return "invalid"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "broadcast":
		return Broadcast, nil
	case "reduce":
		return Reduce, nil
	case "scatter":
		return Scatter, nil
	}
	return KindInvalid, errors.Wrapf(ErrInvalidSpec, "unknown operator kind %q", s)
}

// Codec names the encoding of an operator's payloads.
type Codec interface {
	Name() string
}

// ReduceFunction names the function a reduce root applies to incoming values.
type ReduceFunction interface {
	Name() string
}

// CodecName is a Codec known only by its name.
type CodecName string

func (c CodecName) Name() string { return string(c) }

// ReduceFunctionName is a ReduceFunction known only by its name.
type ReduceFunctionName string

func (f ReduceFunctionName) Name() string { return string(f) }

// OperatorSpec is immutable once constructed. The zero value is invalid.
type OperatorSpec struct {
	kind     Kind
	rootID   string
	codec    Codec
	reduceFn ReduceFunction
}

// NewBroadcastSpec describes a broadcast whose sender is rootID.
func NewBroadcastSpec(rootID string, codec Codec) (OperatorSpec, error) {
	s := OperatorSpec{kind: Broadcast, rootID: rootID, codec: codec}
	return s, s.Validate()
}

// NewReduceSpec describes a reduce whose receiver is rootID.
func NewReduceSpec(rootID string, codec Codec, fn ReduceFunction) (OperatorSpec, error) {
	s := OperatorSpec{kind: Reduce, rootID: rootID, codec: codec, reduceFn: fn}
	return s, s.Validate()
}

// NewScatterSpec describes a scatter whose sender is rootID.
func NewScatterSpec(rootID string, codec Codec) (OperatorSpec, error) {
	s := OperatorSpec{kind: Scatter, rootID: rootID, codec: codec}
	return s, s.Validate()
}

// Validate reports ErrInvalidSpec for a spec that did not come out of one of
// the constructors successfully.
func (s OperatorSpec) Validate() error {
	switch s.kind {
	case Broadcast, Reduce, Scatter:
	default:
		return errors.Wrap(ErrInvalidSpec, "operator kind is not set")
	}
	if s.rootID == "" {
		return errors.Wrapf(ErrInvalidSpec, "%s: root task id is empty", s.kind)
	}
	if s.codec == nil || s.codec.Name() == "" {
		return errors.Wrapf(ErrInvalidSpec, "%s: codec is missing", s.kind)
	}
	if s.kind == Reduce && (s.reduceFn == nil || s.reduceFn.Name() == "") {
		return errors.Wrap(ErrInvalidSpec, "reduce: reduce function is missing")
	}
	names := []string{s.rootID, s.codec.Name()}
	if s.reduceFn != nil {
		names = append(names, s.reduceFn.Name())
	}
	for _, n := range names {
		if !utf8.ValidString(n) {
			return errors.Wrapf(ErrInvalidSpec, "%s: %q is not valid UTF-8", s.kind, n)
		}
	}
	return nil
}

func (s OperatorSpec) Kind() Kind     { return s.kind }
func (s OperatorSpec) RootID() string { return s.rootID }
func (s OperatorSpec) Codec() Codec   { return s.codec }

// ReduceFunction is nil for anything but reduce.
func (s OperatorSpec) ReduceFunction() ReduceFunction { return s.reduceFn }
