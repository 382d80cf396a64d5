package models

import "errors"

// Доменные ошибки; обработчики переводят их в HTTP-коды
var (
	ErrInvalidTransition    = errors.New("invalid stage transition")
	ErrMandatoryStage       = errors.New("mandatory stage cannot be skipped")
	ErrStaleTender          = errors.New("tender was modified concurrently")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrUnresolvedAssignment = errors.New("dynamic assignment cannot be resolved")
	ErrDelegationNotAllowed = errors.New("delegation is not allowed for this step")
)
