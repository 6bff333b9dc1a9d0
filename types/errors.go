package types

import "errors"

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the resource conflicts (e.g. concurrent create of the same document)
	ErrConflict = errors.New("conflict")

	// ErrBadRequest is returned on malformed input
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidEmail is returned when the email is invalid
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidPublicKey is returned when a public key fails base58/size validation
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrNotAuthorized is returned when the target resource refuses delivery (e.g. deactivated alias)
	ErrNotAuthorized = errors.New("not authorized")

	// ErrTooManyRequests is returned when a rate limit or cool-down applies
	ErrTooManyRequests = errors.New("too many requests")

	// ErrVerificationFailed is returned on a bad/expired captcha token or one-time code
	ErrVerificationFailed = errors.New("verification failed")

	// ErrDispatchFailed is returned when the mail transport rejected a send
	ErrDispatchFailed = errors.New("mail dispatch failed")

	// ErrNoSecretMaterial is returned when a resend is requested for a record without stored secret bytes
	ErrNoSecretMaterial = errors.New("no secret material stored for this record")

	// ErrInternal (for unhandled exceptions)
	ErrInternal = errors.New("internal error")
)
