// Package message defines the shared execution primitives of spec.md §4.5:
// structured log records produced by kernels, and the variable descriptors
// and hints used by the "list" kernel operation.
package message

// Level is the severity of an ExecutionMessage.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warning
	Error
	Exception
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "Trace"
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	case Exception:
		return "Exception"
	default:
		return "Unknown"
	}
}

// Location is an optional source position carried by an ExecutionMessage.
type Location struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// ExecutionMessage is a structured log record emitted by a kernel during
// execute/evaluate. User-code errors are carried as Exception-level
// messages, never as Go errors (spec.md §7: "user-code errors as data").
type ExecutionMessage struct {
	Level     Level
	Message   string
	ErrorType string
	Trace     string
	Location  *Location
}

// NewException builds the single Exception-level message a kernel emits
// for a syntax or runtime error (Testable Properties: "messages[0].level
// == Exception, outputs == []").
func NewException(errType, msg, trace string) ExecutionMessage {
	return ExecutionMessage{
		Level:     Exception,
		Message:   msg,
		ErrorType: errType,
		Trace:     trace,
	}
}

// VariableDescriptor is returned by the kernel "list" operation.
type VariableDescriptor struct {
	Name                string
	NativeType          string
	NodeType             string
	Hint                Hint
	ProgrammingLanguage string
}

// HintKind discriminates the Hint union.
type HintKind int

const (
	HintNone HintKind = iota
	HintInteger
	HintNumber
	HintBoolean
	HintString
	HintArray
	HintObject
	HintDatatable
)

// Hint is a compressed summary of a variable's value, per spec.md §4.5.
type Hint struct {
	Kind HintKind

	IntValue  int64
	NumValue  float64
	BoolValue bool
	StrLen    int // StringHint(len)

	ArrayLen       int // ArrayHint(len, ...)
	ArrayItemTypes []string
	ArrayMin       *float64
	ArrayMax       *float64
	ArrayNulls     *int

	ObjectLen   int // ObjectHint(len, keys, item_hints)
	ObjectKeys  []string
	ObjectHints []Hint

	Rows    int // DatatableHint(rows, columns)
	Columns int
}
