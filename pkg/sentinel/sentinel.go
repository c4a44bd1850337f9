package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and chain transports return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrClosed: subscription or connection already closed
// - ErrUnavailable: chain endpoint or store temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/apperrors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrClosed      = errors.New("closed")
	ErrUnavailable = errors.New("unavailable")
)
