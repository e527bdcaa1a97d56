package errors

import (
	"encoding/json"
	"fmt"
)

// ConstraintViolationErr is raised when storage rejects a write because of integrity constraint
type ConstraintViolationErr struct {
	constraint string
	message    string
}

func (e *ConstraintViolationErr) Error() string {
	if e.constraint == "" {
		return e.message
	}
	return fmt.Sprintf("%s (constraint %s)", e.message, e.constraint)
}

// Constraint returns violated constraint name if storage reported it
func (e *ConstraintViolationErr) Constraint() string {
	return e.constraint
}

func (e *ConstraintViolationErr) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Constraint string `json:"constraint,omitempty"`
		Message    string `json:"message"`
	}{Constraint: e.constraint, Message: e.message})
}

func NewConstraintViolationErr(constraint string, msg string) *ConstraintViolationErr {
	return &ConstraintViolationErr{
		constraint: constraint,
		message:    msg,
	}
}
