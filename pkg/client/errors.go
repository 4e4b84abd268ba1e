package client

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/artwork-browser/pkg/artwork"
)

// Common errors returned by the client.
var (
	// ErrInvalidPageRequest is returned for a page or row count below 1. No request is sent.
	ErrInvalidPageRequest = errors.New("invalid page request")

	// ErrRateLimited is returned when the catalog quota is spent. No request is sent.
	ErrRateLimited = errors.New("request refused: catalog quota exhausted")
)

// ErrorClass represents a classification of catalog failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 answers and locally refused requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassPayload represents bodies that do not match the listing schema.
	ErrorClassPayload ErrorClass = "payload"
)

// CatalogError is a failed catalog request.
type CatalogError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to an error class; "" for success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Classify returns the class of an error produced by the client,
// or "" when it is not a catalog failure.
func Classify(err error) ErrorClass {
	var catalogErr *CatalogError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &catalogErr):
		return catalogErr.ErrorClass
	case errors.Is(err, ErrRateLimited):
		return ErrorClassRateLimit
	case errors.Is(err, artwork.ErrMalformedPayload):
		return ErrorClassPayload
	default:
		return ""
	}
}
