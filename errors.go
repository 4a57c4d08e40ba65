package courier

import "errors"

// Sentinel errors for the sending and rendering pipeline. They come back
// wrapped with detail, match them with errors.Is.
var (
	// ErrUnknownType means the requested message type was never registered.
	ErrUnknownType = errors.New("unknown message type")

	// ErrNotImplemented marks an absent capability, for instance an email
	// type that carries no HTML part.
	ErrNotImplemented = errors.New("not implemented")

	// ErrTemplate covers rendering failures, including an unresolvable base
	// URL while making links absolute.
	ErrTemplate = errors.New("template error")

	// ErrNotFound means the requested message record does not exist.
	ErrNotFound = errors.New("message not found")
)
