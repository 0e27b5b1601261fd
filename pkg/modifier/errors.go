package modifier

import (
	"fmt"
	"strings"
)

// ChainConsistencyError reports an unknown, duplicate or unconsumed stage name
type ChainConsistencyError struct {
	Op     string
	Names  []string
	Reason string
}

func (e *ChainConsistencyError) Error() string {
	return fmt.Sprintf("chain %s [%s]: %s", e.Op, strings.Join(e.Names, " "), e.Reason)
}

// MissingSecondObjectProviderError is returned when a stage needs a sibling
// value and no provider has been registered for it
type MissingSecondObjectProviderError struct {
	Stage string
}

func (e *MissingSecondObjectProviderError) Error() string {
	return fmt.Sprintf("stage %s: no second object provider registered", e.Stage)
}

// UnsupportedValueError is returned when a stage receives a value variant it
// cannot transform
type UnsupportedValueError struct {
	Stage string
	Got   string
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("stage %s cannot transform %s", e.Stage, e.Got)
}

func unsupported(stage string, v any) *UnsupportedValueError {
	return &UnsupportedValueError{Stage: stage, Got: fmt.Sprintf("%T", v)}
}
