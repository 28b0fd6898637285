package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"

	"github.com/tidwall/gjson"
)

const (
	codeContentFilter       = "content_filter"
	codeResponsibleAIPolicy = "ResponsibleAIPolicyViolation"
	defaultFilterMessage    = "request rejected by content filter"
)

// ContentFilterError reports a request refused by the vendor's content policy.
type ContentFilterError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ContentFilterError) Error() string {
	if e.Message == "" {
		return defaultFilterMessage
	}
	return fmt.Sprintf("content filter: %s", e.Message)
}

func (e *ContentFilterError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a request that never reached the service.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("connect: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// APIError is any other failure reported by the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func IsContentFilter(err error) bool {
	var target *ContentFilterError
	return errors.As(err, &target)
}

func IsConnection(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// classifyTransport wraps a failure of the HTTP round trip itself. Context
// cancellation is returned untouched: the caller went away, the network did not.
func classifyTransport(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	var urlErr *url.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &urlErr), errors.As(err, &netErr):
		return &ConnectionError{Endpoint: endpoint, Err: err}
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return &ConnectionError{Endpoint: endpoint, Err: err}
	default:
		return err
	}
}

func isContentFilterCode(code, innerCode string) bool {
	return code == codeContentFilter || innerCode == codeResponsibleAIPolicy
}

// vendorError maps an OpenAI-style {"error": {...}} object.
func vendorError(status int, obj gjson.Result) error {
	code := obj.Get("code").String()
	innerCode := obj.Get("innererror.code").String()
	message := obj.Get("message").String()
	if isContentFilterCode(code, innerCode) {
		return &ContentFilterError{StatusCode: status, Message: message}
	}
	return &APIError{StatusCode: status, Code: code, Message: message}
}
