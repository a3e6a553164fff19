package services

import "errors"

// Errors shared across services and mapped to HTTP in the handlers layer.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed          = errors.New("validation failed")
	ErrPasswordTooShort          = errors.New("password is too short")
	ErrTournamentNameRequired    = errors.New("tournament name is required")
	ErrTournamentInvalidCapacity = errors.New("tournament max players must be at least 2")
	ErrRegistrationNotOpen       = errors.New("tournament registration is not open")
	ErrTournamentFull            = errors.New("tournament registration is full")
	ErrReportSubmitterInvalid    = errors.New("reporter is not a player of this match")
	ErrReportInvalid             = errors.New("report winner must be one of the match players and scores must be non-negative")
	ErrMatchNotPlayable          = errors.New("match is already completed")
	ErrNoRoundToAdvance          = errors.New("tournament has no generated rounds to advance")
	ErrBannerStorageDisabled     = errors.New("banner storage is not configured")

	// Conflicts
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrRegistrationConflict = errors.New("player is already registered for this tournament")

	// Authentication and authorization
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Entity-specific not-found variants
	ErrUserNotFound       = errors.New("user not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
)

// Notifier pushes live bracket events to viewers; *brackets.Hub satisfies
// it.
type Notifier interface {
	BroadcastToRoom(roomID string, message interface{})
}
