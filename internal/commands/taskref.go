package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TaskRef represents a parsed task reference: a 1-based task number as
// printed by `asanapdf tasks`, a range of numbers, or a task gid.
type TaskRef struct {
	Num  int    // first task number, 0 if the token is too long to be a number
	Last int    // last task number of a range, equal to Num otherwise
	ID   string // the raw digits, tried as a gid before the number
}

// maxTaskNumberDigits bounds how many digits a task number may have. Longer
// tokens can only be gids.
const maxTaskNumberDigits = 6

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses a single task reference.
//
// Parsing rules:
// 1. All digits → a gid, and a task number when short enough
// 2. <digits>-<digits> (e.g., 2-5) → inclusive range of task numbers
// 3. Otherwise → error: invalid task reference: <ref>
func ParseTaskRef(arg string) (TaskRef, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return TaskRef{}, ErrTaskRefRequired
	}

	// Case 1: all digits
	if isAllDigits(arg) {
		ref := TaskRef{ID: arg}
		if len(arg) <= maxTaskNumberDigits {
			n, _ := strconv.Atoi(arg)
			ref.Num, ref.Last = n, n
		}
		return ref, nil
	}

	// Case 2: range
	if first, last, ok := strings.Cut(arg, "-"); ok && isAllDigits(first) && isAllDigits(last) &&
		len(first) <= maxTaskNumberDigits && len(last) <= maxTaskNumberDigits {
		from, _ := strconv.Atoi(first)
		to, _ := strconv.Atoi(last)
		if from < 1 || to < from {
			return TaskRef{}, fmt.Errorf("invalid task range: %s", arg)
		}
		return TaskRef{Num: from, Last: to}, nil
	}

	// Case 3: invalid reference
	return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
}

// ParseTaskRefs parses every argument as a task reference.
func ParseTaskRefs(args []string) ([]TaskRef, error) {
	if len(args) == 0 {
		return nil, ErrTaskRefRequired
	}
	refs := make([]TaskRef, 0, len(args))
	for _, arg := range args {
		ref, err := ParseTaskRef(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
