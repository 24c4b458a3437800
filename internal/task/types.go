package task

import "fmt"

// Kind discriminates the descriptor variants.
type Kind int

const (
	// KindMessage sends a literal text payload to the destination.
	KindMessage Kind = iota
	// KindRange relays an inclusive range of source item identifiers.
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindRange:
		return "range"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Descriptor is one parsed instruction from the task file. Descriptors are
// immutable after parsing and execute in file order.
type Descriptor struct {
	Kind    Kind
	Content string // KindMessage
	Start   int64  // KindRange, inclusive
	End     int64  // KindRange, inclusive; Start <= End always holds
}

// Count returns the number of work items the descriptor expands to.
func (d Descriptor) Count() int64 {
	if d.Kind == KindRange {
		return d.End - d.Start + 1
	}
	return 1
}

func (d Descriptor) String() string {
	if d.Kind == KindRange {
		return fmt.Sprintf("range %d-%d", d.Start, d.End)
	}
	return fmt.Sprintf("message (%d chars)", len(d.Content))
}

// Warning records a tolerated-but-suspicious spot in the task file, such as
// a start with no matching end. Warnings never abort the run; the reporter
// surfaces them so the operator can fix the file.
type Warning struct {
	Line   int
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Reason)
}
