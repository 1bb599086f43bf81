// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package translator

import (
	"errors"
	"fmt"
)

// Pipeline steps reported by StepError.
const (
	StepValidate  = "validate"
	StepAuth      = "auth"
	StepCopy      = "copy"
	StepExtract   = "extract"
	StepTranslate = "translate"
	StepUpdate    = "update"
)

// ErrInvalidRequest is wrapped by validation failures.
var ErrInvalidRequest = errors.New("invalid translation request")

// StepError identifies the pipeline step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepError(step string, err error) error {
	return &StepError{Step: step, Err: err}
}

// FailedStep returns the step of a StepError in err's chain, or "".
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
