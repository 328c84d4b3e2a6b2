package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInFlight is returned while a previous submission has not completed.
	ErrInFlight = errors.New("wizard: submission already in flight")
	// ErrNotLastStep is returned when submitting before the final step.
	ErrNotLastStep = errors.New("wizard: submit is only available on the last step")
)

// ValidationError lists the fields that blocked a submission.
type ValidationError struct {
	Step   int
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("wizard: step %d is incomplete: %s", e.Step, strings.Join(names, ", "))
}
