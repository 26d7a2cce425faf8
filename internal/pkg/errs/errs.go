// Package errs is the error toolkit shared by the usecase and infra layers:
// cockroachdb/errors wrapping for stacks, plus sentinel marking that the
// lifecycle and sync code match with plain errors.Is.
package errs

import (
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func New(msg string) error {
	return cr.New(msg)
}

// Mark attaches markErr as a sentinel: errors.Is(result, markErr) holds for
// both the stdlib and cockroachdb matchers, and err stays the primary cause.
func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(cr.Join(err, markErr), markErr)
}

// ExtractStackLines renders the first maxLines of the verbose form, enough
// for a log line without dumping the whole chain.
func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
