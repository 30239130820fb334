package pipeline

import "errors"

// Caller-visible failures. Persistence failures are recovered
// locally and never surfaces through these.
var (
	// ErrValidation rejects a request before any external call.
	ErrValidation = errors.New("invalid request")
	// ErrGenerationMalformed means no JSON object could be recovered from the
	// synthesis output. Nothing is written; the caller should resubmit.
	ErrGenerationMalformed = errors.New("LLM returned malformed JSON - please try again.")
	// ErrGenerationFailed means the synthesis call itself failed or timed out.
	ErrGenerationFailed = errors.New("failed to generate deliverable, please try again")
)
