// Package common defines shared constants and sentinel errors used across
// the sync daemon, the repositories and the reconciler. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Wire-level errors raised while applying an incoming payload.
	ErrUnknownModel = errors.New("unknown model")
	ErrMissingUUID  = errors.New("missing or invalid uuid")
	ErrInvalidField = errors.New("invalid field value")

	// Storage write errors.
	ErrUnsavedRelation = errors.New("related record has no local identifier")
)
