// Package rest exposes the rendezvous decision workflow over HTTP/JSON.
package rest

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/louisbranch/duet.space/internal/platform/errors"
	"github.com/louisbranch/duet.space/internal/platform/httpx"
	"github.com/louisbranch/duet.space/internal/platform/requestctx"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/domain"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/service"
	"github.com/louisbranch/duet.space/internal/services/rendezvous/storage"
)

// Workflow is the slice of the decision service the HTTP surface needs.
type Workflow interface {
	GetOrCreateSession(ctx context.Context, principal requestctx.Principal) (domain.Session, bool, error)
	GetCurrentSession(ctx context.Context, principal requestctx.Principal) (service.SessionView, bool, error)
	GetSession(ctx context.Context, principal requestctx.Principal, sessionID string) (domain.Session, error)
	SubmitChoices(ctx context.Context, principal requestctx.Principal, sessionID string, choices []string) (domain.Session, error)
	ListOutcomes(ctx context.Context, principal requestctx.Principal, filter string, pageSize int32, pageToken string) (storage.OutcomePage, error)
}

// Handler serves the rendezvous HTTP API.
type Handler struct {
	workflow Workflow
}

// NewHandler creates a Handler over the decision workflow.
func NewHandler(workflow Workflow) *Handler {
	return &Handler{workflow: workflow}
}

// sessionView is the wire shape of a session as seen by one participant.
// The partner's candidate set stays sealed until the session completes;
// only presence flags cross the wire while waiting.
type sessionView struct {
	ID                  string    `json:"id"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	IsFirstParticipant  bool      `json:"is_first_participant"`
	HasSubmitted        bool      `json:"has_submitted"`
	PartnerHasSubmitted bool      `json:"partner_has_submitted"`
	MyChoices           []string  `json:"my_choices,omitempty"`
	AgreedChoices       []string  `json:"agreed_choices,omitempty"`
	DecidedCandidate    string    `json:"decided_candidate,omitempty"`
}

type outcomeView struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Candidate       string    `json:"candidate"`
	DecidedByUserID string    `json:"decided_by_user_id"`
	DecidedAt       time.Time `json:"decided_at"`
}

func newSessionView(session domain.Session, userID string) sessionView {
	isFirst := session.FirstParticipantID == userID
	view := sessionView{
		ID:                 session.ID,
		Status:             session.Status.String(),
		CreatedAt:          session.CreatedAt,
		ExpiresAt:          session.ExpiresAt,
		IsFirstParticipant: isFirst,
	}
	if isFirst {
		view.HasSubmitted = len(session.FirstChoices) > 0
		view.PartnerHasSubmitted = len(session.SecondChoices) > 0
		view.MyChoices = session.FirstChoices
	} else {
		view.HasSubmitted = userID == session.SecondParticipantID && len(session.SecondChoices) > 0
		view.PartnerHasSubmitted = len(session.FirstChoices) > 0
		if userID == session.SecondParticipantID {
			view.MyChoices = session.SecondChoices
		}
	}
	if session.Status == domain.SessionStatusComplete {
		view.AgreedChoices = session.AgreedChoices
		view.DecidedCandidate = session.DecidedCandidate
	}
	return view
}

func newOutcomeView(outcome domain.Outcome) outcomeView {
	return outcomeView{
		ID:              outcome.ID,
		SessionID:       outcome.SessionID,
		Candidate:       outcome.Candidate,
		DecidedByUserID: outcome.DecidedByUserID,
		DecidedAt:       outcome.DecidedAt,
	}
}

type sessionResponse struct {
	Session *sessionView `json:"session"`
}

type submitChoicesRequest struct {
	Choices []string `json:"choices"`
}

type listOutcomesResponse struct {
	Outcomes      []outcomeView `json:"outcomes"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

// HandleCreateSession returns the pair's waiting session, creating one when
// none exists. 201 signals this call created it.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	principal := requestctx.PrincipalFromContext(r.Context())
	session, created, err := h.workflow.GetOrCreateSession(r.Context(), principal)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	view := newSessionView(session, principal.UserID)
	_ = httpx.WriteJSON(w, status, sessionResponse{Session: &view})
}

// HandleGetSession returns the pair's current session, or a null session
// when the pair has none. A pure read; nothing is created.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	principal := requestctx.PrincipalFromContext(r.Context())
	current, found, err := h.workflow.GetCurrentSession(r.Context(), principal)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if !found {
		_ = httpx.WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	view := newSessionView(current.Session, principal.UserID)
	_ = httpx.WriteJSON(w, http.StatusOK, sessionResponse{Session: &view})
}

// HandleGetSessionByID returns one session by identifier, scoped to the
// requester's pair.
func (h *Handler) HandleGetSessionByID(w http.ResponseWriter, r *http.Request) {
	principal := requestctx.PrincipalFromContext(r.Context())
	session, err := h.workflow.GetSession(r.Context(), principal, r.PathValue("sessionID"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	view := newSessionView(session, principal.UserID)
	_ = httpx.WriteJSON(w, http.StatusOK, sessionResponse{Session: &view})
}

// HandleSubmitChoices records the requester's candidate set for a session.
func (h *Handler) HandleSubmitChoices(w http.ResponseWriter, r *http.Request) {
	principal := requestctx.PrincipalFromContext(r.Context())
	sessionID := r.PathValue("sessionID")

	var req submitChoicesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, apperrors.Wrap(apperrors.CodeRequestBodyInvalid, "decode request body", err))
		return
	}

	session, err := h.workflow.SubmitChoices(r.Context(), principal, sessionID, req.Choices)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	view := newSessionView(session, principal.UserID)
	_ = httpx.WriteJSON(w, http.StatusOK, sessionResponse{Session: &view})
}

// HandleListOutcomes returns a page of the pair's decided outcomes.
func (h *Handler) HandleListOutcomes(w http.ResponseWriter, r *http.Request) {
	principal := requestctx.PrincipalFromContext(r.Context())
	query := r.URL.Query()

	var pageSize int32
	if raw := query.Get("page_size"); raw != "" {
		parsed, err := parsePageSize(raw)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		pageSize = parsed
	}

	page, err := h.workflow.ListOutcomes(r.Context(), principal, query.Get("filter"), pageSize, query.Get("page_token"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	response := listOutcomesResponse{
		Outcomes:      make([]outcomeView, 0, len(page.Outcomes)),
		NextPageToken: page.NextPageToken,
	}
	for _, outcome := range page.Outcomes {
		response.Outcomes = append(response.Outcomes, newOutcomeView(outcome))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, response)
}
