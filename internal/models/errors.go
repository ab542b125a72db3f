package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrComputation    = errors.New("computation failed")
	ErrNotImplemented = errors.New("not implemented")
	ErrResource       = errors.New("resource unavailable")
)

// ComputationError reports that a metric or statistic could not be derived
// from otherwise well-typed inputs.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: score cannot be computed: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

func (e *ComputationError) Is(target error) bool {
	return target == ErrComputation
}

// NewComputationError wraps err for operation op.
func NewComputationError(op string, err error) *ComputationError {
	return &ComputationError{Op: op, Err: err}
}

// ConfigurationError reports a configured metric name that matches no
// implemented metric.
type ConfigurationError struct {
	Name  string
	Known []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("metric %q not found", e.Name)
	}
	return fmt.Sprintf("metric %q not found (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrNotImplemented
}

// ResourceError reports a result file or image path that could not be read
// or written.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

func (e *ResourceError) Is(target error) bool {
	return target == ErrResource
}
