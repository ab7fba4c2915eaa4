// Package errors provides structured error handling with i18n support.
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

	// Identity errors
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodePairGrantInvalid  Code = "PAIR_GRANT_INVALID"
	CodePairGrantExpired  Code = "PAIR_GRANT_EXPIRED"
	CodePairGrantMismatch Code = "PAIR_GRANT_MISMATCH"

	// Rendezvous session errors
	CodeRendezvousPairIDEmpty        Code = "RENDEZVOUS_PAIR_ID_EMPTY"
	CodeRendezvousUserIDEmpty        Code = "RENDEZVOUS_USER_ID_EMPTY"
	CodeRendezvousSessionIDEmpty     Code = "RENDEZVOUS_SESSION_ID_EMPTY"
	CodeRendezvousChoicesEmpty       Code = "RENDEZVOUS_CHOICES_EMPTY"
	CodeRendezvousSessionUnavailable Code = "RENDEZVOUS_SESSION_UNAVAILABLE"
	CodeRendezvousNotAParticipant    Code = "RENDEZVOUS_NOT_A_PARTICIPANT"

	// Outcome listing errors
	CodeOutcomeFilterInvalid    Code = "OUTCOME_FILTER_INVALID"
	CodeOutcomePageTokenInvalid Code = "OUTCOME_PAGE_TOKEN_INVALID"

	// Request decoding errors
	CodeRequestBodyInvalid Code = "REQUEST_BODY_INVALID"
	CodePageSizeInvalid    Code = "PAGE_SIZE_INVALID"

	// Storage errors
	CodeNotFound               Code = "NOT_FOUND"
	CodeWaitingSessionExists   Code = "WAITING_SESSION_EXISTS"
	CodeOutcomeAlreadyRecorded Code = "OUTCOME_ALREADY_RECORDED"

	// Random/seed errors
	CodeSeedUnavailable Code = "SEED_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeRendezvousPairIDEmpty,
		CodeRendezvousUserIDEmpty,
		CodeRendezvousSessionIDEmpty,
		CodeRendezvousChoicesEmpty,
		CodeOutcomeFilterInvalid,
		CodeOutcomePageTokenInvalid,
		CodeRequestBodyInvalid,
		CodePageSizeInvalid:
		return codes.InvalidArgument

	// Unauthenticated - missing or unverifiable identity
	case CodeUnauthorized,
		CodePairGrantInvalid,
		CodePairGrantExpired,
		CodePairGrantMismatch:
		return codes.Unauthenticated

	// PermissionDenied - caller is not one of the bound participants
	case CodeRendezvousNotAParticipant:
		return codes.PermissionDenied

	// FailedPrecondition - state doesn't allow operation
	case CodeRendezvousSessionUnavailable,
		CodeWaitingSessionExists:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeOutcomeAlreadyRecorded:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes for JSON surfaces.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition, codes.AlreadyExists:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
