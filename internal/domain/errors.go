package domain

import "errors"

var (
	ErrFetchFailure          = errors.New("fetch failure")
	ErrClassifierUnavailable = errors.New("fast classifier unavailable")
	ErrReasoningUnavailable  = errors.New("reasoning classifier unavailable")
	ErrInsufficientText      = errors.New("text too short to classify")
	ErrInvalidDomain         = errors.New("invalid domain format")
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyPredicted      = errors.New("already predicted")
)
