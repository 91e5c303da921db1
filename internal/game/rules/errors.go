package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalAction marks a rejected player intent. The game state is unchanged.
	ErrIllegalAction = errors.New("illegal action")
	// ErrInvariantViolation marks a broken engine contract. The game halts.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrGameHalted is returned for every action after an invariant violation.
	ErrGameHalted = errors.New("game halted")
)

// Code categorizes illegal actions.
type Code string

const (
	CodeUnknownAction    Code = "unknown_action"
	CodeUnknownObject    Code = "unknown_object"
	CodeUnknownPlayer    Code = "unknown_player"
	CodeNoPriority       Code = "no_priority"
	CodeWrongStep        Code = "wrong_step"
	CodeWrongZone        Code = "wrong_zone"
	CodeNotController    Code = "not_controller"
	CodeDecisionPending  Code = "decision_pending"
	CodeNoDecision       Code = "no_decision"
	CodeInvalidResponse  Code = "invalid_response"
	CodeInvalidTarget    Code = "invalid_target"
	CodeInsufficientMana Code = "insufficient_mana"
	CodeCostUnpayable    Code = "cost_unpayable"
	CodeLandLimit        Code = "land_limit"
	CodeInvalidAttack    Code = "invalid_attack"
	CodeInvalidBlock     Code = "invalid_block"
	CodeGameOver         Code = "game_over"
)

// ActionError is an illegal-action rejection with a code and a human readable reason.
type ActionError struct {
	Code   Code
	Reason string
	Meta   map[string]string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Unwrap lets errors.Is match ErrIllegalAction.
func (e *ActionError) Unwrap() error {
	return ErrIllegalAction
}

// WithMeta adds context to the error.
func (e *ActionError) WithMeta(key, value string) *ActionError {
	if e.Meta == nil {
		e.Meta = make(map[string]string)
	}
	e.Meta[key] = value
	return e
}

// Illegal creates an ActionError.
func Illegal(code Code, format string, args ...any) *ActionError {
	return &ActionError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the action error code from err, or "" when err is not an ActionError.
func CodeOf(err error) Code {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Code
	}
	return ""
}
