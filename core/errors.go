package core

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorCodeNotFound         = "WEBHOOK_EVENT_NOT_FOUND"
	ErrorCodeHandlerFailed    = "WEBHOOK_HANDLER_FAILED"
	ErrorCodeRetriesExhausted = "WEBHOOK_RETRIES_EXHAUSTED"
	ErrorCodeLedgerFailure    = "WEBHOOK_LEDGER_FAILURE"
	ErrorCodeBadInput         = "WEBHOOK_BAD_INPUT"
)

// ExhaustedRetriesMessage is the operator-visible last_error recorded when an
// event is dead-lettered at the attempt ceiling.
const ExhaustedRetriesMessage = "Exceeded maximum retry attempts"

// NotFoundError marks a referenced event id that does not exist. Non
// retryable: this is a caller bug, not a transient condition.
func NotFoundError(id string) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("core: webhook event %q not found", id),
		goerrors.CategoryNotFound,
	).WithTextCode(ErrorCodeNotFound)
}

// RetriesExhaustedError marks an event that entered processing with its
// attempt ceiling already reached. Terminal.
func RetriesExhaustedError(id string) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("core: webhook event %q exceeded maximum retry attempts", id),
		goerrors.CategoryConflict,
	).WithTextCode(ErrorCodeRetriesExhausted)
}

// HandlerFailedError wraps a handler rejection. Retryable up to the ceiling.
func HandlerFailedError(id string, cause error) *goerrors.Error {
	message := "core: webhook handler failed"
	if cause != nil {
		message = fmt.Sprintf("core: webhook handler failed for event %q: %v", id, cause)
	}
	return goerrors.New(message, goerrors.CategoryOperation).
		WithTextCode(ErrorCodeHandlerFailed)
}

// LedgerFailureError marks storage I/O failures. Never retried by the
// processor; propagates to whoever invoked it.
func LedgerFailureError(operation string, cause error) *goerrors.Error {
	message := fmt.Sprintf("core: webhook ledger %s failed", operation)
	if cause != nil {
		message = fmt.Sprintf("core: webhook ledger %s failed: %v", operation, cause)
	}
	return goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(ErrorCodeLedgerFailure)
}

func BadInputError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(ErrorCodeBadInput)
}

func IsNotFound(err error) bool {
	return hasTextCode(err, ErrorCodeNotFound)
}

func IsRetriesExhausted(err error) bool {
	return hasTextCode(err, ErrorCodeRetriesExhausted)
}

func IsHandlerFailure(err error) bool {
	return hasTextCode(err, ErrorCodeHandlerFailed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// MapError lifts arbitrary errors into the module's error envelope. Rich
// errors keep their category; plain errors are classified by message.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return ensureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryNotFound).
				WithTextCode(ErrorCodeNotFound),
		)
	case strings.Contains(msg, "retry attempts"):
		return ensureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryConflict).
				WithTextCode(ErrorCodeRetriesExhausted),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(ErrorCodeBadInput),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorCodeBadInput
	case goerrors.CategoryNotFound:
		return ErrorCodeNotFound
	case goerrors.CategoryConflict:
		return ErrorCodeRetriesExhausted
	case goerrors.CategoryOperation:
		return ErrorCodeHandlerFailed
	default:
		return ErrorCodeLedgerFailure
	}
}
