package registry

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDescriptor  = errors.New("invalid descriptor")
	ErrUnknownPlacement   = errors.New("unknown placement type")
	ErrUnknownUtilityKind = errors.New("unknown utility kind")
)

// DescriptorError reports which factory rejected its input and why.
type DescriptorError struct {
	Kind   string
	Reason string
	Err    error
}

func (e *DescriptorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s descriptor: %s: %v", e.Kind, e.Reason, e.Err)
	}

	return fmt.Sprintf("invalid %s descriptor: %s", e.Kind, e.Reason)
}

func (e *DescriptorError) Unwrap() error {
	return e.Err
}

func (e *DescriptorError) Is(target error) bool {
	return target == ErrInvalidDescriptor
}

func NewDescriptorError(kind, reason string, err error) *DescriptorError {
	return &DescriptorError{Kind: kind, Reason: reason, Err: err}
}

func IsInvalidDescriptor(err error) bool {
	return errors.Is(err, ErrInvalidDescriptor)
}
