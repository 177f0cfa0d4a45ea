package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: document or record does not exist in the store
// - ErrUnavailable: remote collaborator temporarily unreachable
// - ErrPermissionDenied: remote collaborator rejected the caller
// - ErrTimeout: the per-attempt deadline elapsed before a response
// - ErrCorrupt: a stored record could not be decoded
// - ErrOffline: the device has no connectivity and no attempt was made
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrUnavailable      = errors.New("unavailable")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTimeout          = errors.New("timeout")
	ErrCorrupt          = errors.New("corrupt")
	ErrOffline          = errors.New("offline")
)
