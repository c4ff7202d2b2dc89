// Package errors provides coded errors shared by the siteledger transports.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeInvalidDate      Code = "INVALID_DATE"
	CodeInvalidRange     Code = "INVALID_RANGE"
	CodeRangeTooLarge    Code = "RANGE_TOO_LARGE"
	CodeInvalidRollover  Code = "INVALID_ROLLOVER"
	CodeReasonRequired   Code = "REASON_REQUIRED"
	CodeInvalidConfig    Code = "INVALID_SITE_CONFIG"

	// State errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeFutureDate    Code = "FUTURE_DATE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeValidationFailed,
		CodeInvalidDate,
		CodeInvalidRange,
		CodeRangeTooLarge,
		CodeInvalidRollover,
		CodeReasonRequired,
		CodeInvalidConfig:
		return codes.InvalidArgument
	case CodeFutureDate:
		return codes.FailedPrecondition
	case CodeNotFound:
		return codes.NotFound
	case CodeAlreadyExists:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
