package elastic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrIndexNotFound means the target index has not been created. It is never retried.
var ErrIndexNotFound = errors.New("index not found")

// ErrInvalidDocument means a document body could not be serialized.
var ErrInvalidDocument = errors.New("invalid document")

// StatusError is a non-2xx response from the cluster.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elasticsearch %s returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// ItemError is one rejected document of a bulk request.
type ItemError struct {
	ID     string
	Status int
	Type   string
	Reason string
}

// BulkError reports documents the cluster rejected.
type BulkError struct {
	Index string
	Items []ItemError
}

func (e *BulkError) Error() string {
	if len(e.Items) == 0 {
		return fmt.Sprintf("bulk write to %s reported errors", e.Index)
	}
	first := e.Items[0]
	return fmt.Sprintf("bulk write to %s rejected %d documents, first %s: %s (%s)",
		e.Index, len(e.Items), first.ID, first.Reason, first.Type)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// IsRetryable reports whether a bulk failure is transient. Transport failures,
// throttling and server errors are; a missing index and rejected documents are not,
// unless every rejection was itself throttling.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrIndexNotFound) || errors.Is(err, ErrInvalidDocument) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var bulkErr *BulkError
	if errors.As(err, &bulkErr) {
		if len(bulkErr.Items) == 0 {
			return false
		}
		for _, item := range bulkErr.Items {
			if !retryableStatus(item.Status) {
				return false
			}
		}
		return true
	}
	return true
}
