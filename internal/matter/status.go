package matter

import (
	"errors"
	"fmt"
)

// Status is an interaction model status code.
type Status uint8

const (
	StatusSuccess              Status = 0x00
	StatusFailure              Status = 0x01
	StatusUnsupportedEndpoint  Status = 0x7F
	StatusUnsupportedAttribute Status = 0x86
	StatusConstraintError      Status = 0x87
	StatusUnsupportedWrite     Status = 0x88
	StatusInvalidDataType      Status = 0x8D
	StatusUnsupportedCluster   Status = 0xC3
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusUnsupportedEndpoint:
		return "UNSUPPORTED_ENDPOINT"
	case StatusUnsupportedAttribute:
		return "UNSUPPORTED_ATTRIBUTE"
	case StatusConstraintError:
		return "CONSTRAINT_ERROR"
	case StatusUnsupportedWrite:
		return "UNSUPPORTED_WRITE"
	case StatusInvalidDataType:
		return "INVALID_DATA_TYPE"
	case StatusUnsupportedCluster:
		return "UNSUPPORTED_CLUSTER"
	}
	return fmt.Sprintf("0x%02X", uint8(s))
}

// StatusFor maps an Update error to its status code.
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrEndpointNotFound):
		return StatusUnsupportedEndpoint
	case errors.Is(err, ErrClusterNotFound):
		return StatusUnsupportedCluster
	case errors.Is(err, ErrAttributeNotFound):
		return StatusUnsupportedAttribute
	case errors.Is(err, ErrInvalidType):
		return StatusInvalidDataType
	case errors.Is(err, ErrConstraint):
		return StatusConstraintError
	}
	return StatusFailure
}
