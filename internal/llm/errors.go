package llm

import (
	"fmt"

	"github.com/joseph-ayodele/mediclaim/internal/common"
)

// MalformedOutputError is returned when model text cannot be decoded as the
// expected JSON. Raw keeps the text as received for debugging.
type MalformedOutputError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, common.ErrMalformedOutput, e.Err)
}

// Unwrap exposes both the sentinel and the decode error.
func (e *MalformedOutputError) Unwrap() []error {
	return []error{common.ErrMalformedOutput, e.Err}
}
