package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown = "UNKNOWN"

	CodeUnauthorized      = "UNAUTHORIZED"
	CodePairGrantInvalid  = "PAIR_GRANT_INVALID"
	CodePairGrantExpired  = "PAIR_GRANT_EXPIRED"
	CodePairGrantMismatch = "PAIR_GRANT_MISMATCH"

	CodeRendezvousPairIDEmpty        = "RENDEZVOUS_PAIR_ID_EMPTY"
	CodeRendezvousUserIDEmpty        = "RENDEZVOUS_USER_ID_EMPTY"
	CodeRendezvousSessionIDEmpty     = "RENDEZVOUS_SESSION_ID_EMPTY"
	CodeRendezvousChoicesEmpty       = "RENDEZVOUS_CHOICES_EMPTY"
	CodeRendezvousSessionUnavailable = "RENDEZVOUS_SESSION_UNAVAILABLE"
	CodeRendezvousNotAParticipant    = "RENDEZVOUS_NOT_A_PARTICIPANT"

	CodeOutcomeFilterInvalid    = "OUTCOME_FILTER_INVALID"
	CodeOutcomePageTokenInvalid = "OUTCOME_PAGE_TOKEN_INVALID"

	CodeRequestBodyInvalid = "REQUEST_BODY_INVALID"
	CodePageSizeInvalid    = "PAGE_SIZE_INVALID"

	CodeNotFound               = "NOT_FOUND"
	CodeWaitingSessionExists   = "WAITING_SESSION_EXISTS"
	CodeOutcomeAlreadyRecorded = "OUTCOME_ALREADY_RECORDED"

	CodeSeedUnavailable = "SEED_UNAVAILABLE"
)

// messagesEnUS holds the base-locale message templates.
var messagesEnUS = map[Code]string{
	CodeUnknown: "Something went wrong. Please try again.",

	CodeUnauthorized:      "Sign in to continue.",
	CodePairGrantInvalid:  "Your pair credentials could not be verified.",
	CodePairGrantExpired:  "Your pair credentials expired. Sign in again.",
	CodePairGrantMismatch: "Your pair credentials do not match this pair.",

	CodeRendezvousPairIDEmpty:        "A pair is required.",
	CodeRendezvousUserIDEmpty:        "A user is required.",
	CodeRendezvousSessionIDEmpty:     "A session is required.",
	CodeRendezvousChoicesEmpty:       "Pick at least one option before submitting.",
	CodeRendezvousSessionUnavailable: "This round has ended. Start a new one together.",
	CodeRendezvousNotAParticipant:    "Only the two of you can take part in this round.",

	CodeOutcomeFilterInvalid:    "The history filter {{.Filter}} is not valid.",
	CodeOutcomePageTokenInvalid: "The history page reference is no longer valid.",

	CodeRequestBodyInvalid: "We could not read that request.",
	CodePageSizeInvalid:    "The page size must be a whole number.",

	CodeNotFound:               "We could not find that.",
	CodeWaitingSessionExists:   "A round is already waiting for this pair.",
	CodeOutcomeAlreadyRecorded: "This decision was already recorded.",

	CodeSeedUnavailable: "Something went wrong. Please try again.",
}
