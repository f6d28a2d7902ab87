package resolver

import (
	"fmt"
	"strings"
)

// ResolveBlockID resolves a block id prefix against the known block ids.
// Returns the full id if ref names a block exactly or prefixes exactly one.
// Returns error if zero or multiple matches found.
//
// A prefix ending at a segment boundary is preferred: "path" resolves to
// "path.vc42" when that is the only path block, even if "pathology.x"
// exists.
func ResolveBlockID(ids []string, ref string) (string, error) {
	if ref == "" {
		return "", &NotFoundError{Ref: ref}
	}

	var matches, segmentMatches []string
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
			if strings.HasPrefix(id, ref+".") {
				segmentMatches = append(segmentMatches, id)
			}
		}
	}
	if len(segmentMatches) > 0 {
		matches = segmentMatches
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Ref: ref}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{Ref: ref, Matches: matches}
	}
}

// NotFoundError indicates no block matched the reference.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no status blocks found matching '%s'", e.Ref)
}

// AmbiguousError indicates multiple blocks matched the reference.
type AmbiguousError struct {
	Ref     string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous block id '%s' matches %d blocks", e.Ref, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous block ids.
// Lists all matching ids (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("'%s' matches %d blocks:\n", err.Ref, len(err.Matches))

	// List up to 10 matches
	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix to uniquely identify the block."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
