package rest

import (
	"net/http"
	"strconv"

	apperrors "github.com/louisbranch/duet.space/internal/platform/errors"
	"github.com/louisbranch/duet.space/internal/platform/httpx"
)

// Route paths served by the rendezvous API.
const (
	PathSession        = "/v1/rendezvous/session"
	PathSessionByID    = "/v1/rendezvous/session/{sessionID}"
	PathSessionChoices = "/v1/rendezvous/session/{sessionID}/choices"
	PathOutcomes       = "/v1/rendezvous/outcomes"
)

// Router builds the HTTP handler for the rendezvous API: authenticated
// routes behind the platform middleware chain.
func Router(handler *Handler, grants GrantVerifier, serviceName string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodPost+" "+PathSession, handler.HandleCreateSession)
	mux.HandleFunc(http.MethodGet+" "+PathSession, handler.HandleGetSession)
	mux.HandleFunc(http.MethodGet+" "+PathSessionByID, handler.HandleGetSessionByID)
	mux.HandleFunc(http.MethodPost+" "+PathSessionChoices, handler.HandleSubmitChoices)
	mux.HandleFunc(http.MethodGet+" "+PathOutcomes, handler.HandleListOutcomes)

	return httpx.Chain(
		mux,
		httpx.RequestID(serviceName),
		httpx.RecoverPanic(),
		Authenticate(grants),
	)
}

func parsePageSize(raw string) (int32, error) {
	parsed, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || parsed < 0 {
		return 0, apperrors.WithMetadata(
			apperrors.CodePageSizeInvalid,
			"page_size must be a non-negative integer",
			map[string]string{"PageSize": raw},
		)
	}
	return int32(parsed), nil
}
