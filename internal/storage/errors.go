package storage

import "errors"

var (
	// ErrModelNotFound is returned when no registration exists for a model name
	ErrModelNotFound = errors.New("model not found")

	// ErrCredentialNotFound is returned when a named credential is missing
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrBadModelParams is returned when stored litellm_params carry neither
	// a direct endpoint nor a credential name
	ErrBadModelParams = errors.New("bad params")

	// ErrSignatureNotFound is returned when no signature is cached
	ErrSignatureNotFound = errors.New("signature not found")

	// ErrChatNotIndexed is returned when the chat index has no entry
	ErrChatNotIndexed = errors.New("chat not indexed")
)
