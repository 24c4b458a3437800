package task

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrNoTasks is returned when the file yields zero usable descriptors.
	ErrNoTasks = errors.New("task file contains no usable tasks")
	// ErrInvalidIdentifier marks identifier values that are neither a
	// decimal number nor a slash-delimited link ending in one.
	ErrInvalidIdentifier = errors.New("invalid identifier format")
	// ErrInvalidRange marks a start/end pair with end < start.
	ErrInvalidRange = errors.New("range end precedes start")
)

// ParseID accepts either a raw decimal identifier or the last path segment
// of a slash-delimited token, so deep links like
// "https://t.me/c/1234567/890" resolve to 890.
func ParseID(value string) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidIdentifier)
	}
	if i := strings.LastIndexByte(v, '/'); i >= 0 {
		v = v[i+1:]
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, value)
	}
	return id, nil
}

// Parse reads a line-oriented task file and returns descriptors in file
// order. The grammar:
//
//	# comment
//	start: <id-or-link>
//	end: <id-or-link>
//	message: <literal text>
//
// Blank lines and comments are ignored. Lines that do not split into a
// key and a value on the first ':' are skipped. A start/end pair closes
// into a range descriptor; a dangling start or an end with no pending
// start is dropped and reported as a Warning.
//
// Parse fails only when the result is empty or an identifier is malformed.
func Parse(r io.Reader) ([]Descriptor, []Warning, error) {
	var (
		descriptors []Descriptor
		warnings    []Warning

		pendingStart     int64
		pendingStartLine int
		hasPending       bool
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			// Defensive skip, not an error.
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "message":
			descriptors = append(descriptors, Descriptor{Kind: KindMessage, Content: value})

		case "start":
			if hasPending {
				warnings = append(warnings, Warning{Line: pendingStartLine, Reason: "start with no matching end, dropped"})
			}
			id, err := ParseID(value)
			if err != nil {
				return nil, warnings, fmt.Errorf("line %d: %w", lineNo, err)
			}
			pendingStart = id
			pendingStartLine = lineNo
			hasPending = true

		case "end":
			if !hasPending {
				warnings = append(warnings, Warning{Line: lineNo, Reason: "end with no preceding start, ignored"})
				continue
			}
			id, err := ParseID(value)
			if err != nil {
				return nil, warnings, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if id < pendingStart {
				return nil, warnings, fmt.Errorf("line %d: %w: %d-%d", lineNo, ErrInvalidRange, pendingStart, id)
			}
			descriptors = append(descriptors, Descriptor{Kind: KindRange, Start: pendingStart, End: id})
			hasPending = false

		default:
			// Unrecognized keys are skipped like malformed lines.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, warnings, fmt.Errorf("read task file: %w", err)
	}

	if hasPending {
		warnings = append(warnings, Warning{Line: pendingStartLine, Reason: "start with no matching end, dropped"})
	}

	if len(descriptors) == 0 {
		return nil, warnings, ErrNoTasks
	}
	return descriptors, warnings, nil
}
