package rag

import "errors"

// Error taxonomy for Answer. Callers branch with errors.Is(); the transport
// layer maps these to HTTP status codes.
var (
	// ErrInvalidInput indicates an empty or whitespace-only message.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexNotReady indicates the startup embedding build has not
	// completed.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrEmbedding indicates the embedding collaborator failed while
	// retrieving context.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration indicates the generation collaborator failed or timed
	// out. Session memory is left untouched.
	ErrGeneration = errors.New("generation failed")
)
