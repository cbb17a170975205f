package alarms

import "errors"

// ErrNotFound indicates a missing alarm record.
var ErrNotFound = errors.New("alarm: not found")

// ErrAlreadyAcknowledged indicates a second acknowledgment attempt.
var ErrAlreadyAcknowledged = errors.New("alarm: already acknowledged")

// ErrAlreadyResolved indicates a resolve on an already-resolved alarm.
var ErrAlreadyResolved = errors.New("alarm: already resolved")
