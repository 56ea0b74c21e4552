package plan

import "errors"

var (
	ErrInvalidPlan         = errors.New("plan: invalid plan")
	ErrUnresolvedReference = errors.New("plan: unresolved reference")
	ErrInvalidMessage      = errors.New("plan: message is not a JSON object")
)
