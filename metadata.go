package streamix

import "github.com/google/uuid"

// MetadataKind marks a value that was split out of or merged from other
// values.
type MetadataKind string

const (
	MetadataExpand   MetadataKind = "expand"
	MetadataCollapse MetadataKind = "collapse"
)

// ValueMetadata is the advisory sidecar an operator may attach to a
// value it produced by splitting or merging inputs. The core never reads
// it; an external tracer does.
type ValueMetadata struct {
	ValueID       string
	OperatorIndex int
	OperatorName  string
	Kind          MetadataKind
	InputValueIDs []string
}

// Traced couples a value with its metadata sidecar.
type Traced[T any] struct {
	Value T
	Meta  *ValueMetadata
}

// NewValueID mints a value identity for the tracer sidecar.
func NewValueID() string {
	return uuid.NewString()
}

// TraceValues wraps each value in a Traced envelope with a fresh value
// id, tagging it with the position and name of the operator feeding the
// tracer.
func TraceValues[T any](operatorIndex int, operatorName string) Operator[T, Traced[T]] {
	op := Map(func(v T) Traced[T] {
		return Traced[T]{Value: v, Meta: &ValueMetadata{
			ValueID:       NewValueID(),
			OperatorIndex: operatorIndex,
			OperatorName:  operatorName,
		}}
	})
	op.name = "traceValues"
	return op
}

// CollapseTraced merges the metadata of several traced inputs into one
// sidecar for the value that replaced them.
func CollapseTraced[T any](out T, operatorIndex int, operatorName string, inputs ...*ValueMetadata) Traced[T] {
	ids := make([]string, 0, len(inputs))
	for _, m := range inputs {
		if m != nil {
			ids = append(ids, m.ValueID)
		}
	}
	return Traced[T]{Value: out, Meta: &ValueMetadata{
		ValueID:       NewValueID(),
		OperatorIndex: operatorIndex,
		OperatorName:  operatorName,
		Kind:          MetadataCollapse,
		InputValueIDs: ids,
	}}
}
