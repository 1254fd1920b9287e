// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind partitions provider failures by how the caller should react.
type ErrorKind string

const (
	// KindNetwork covers transport failures, timeouts, and 5xx responses.
	// Retryable.
	KindNetwork ErrorKind = "network"

	// KindRateLimit covers 429 and quota responses. Retryable.
	KindRateLimit ErrorKind = "rate_limit"

	// KindAuth covers invalid or missing credentials. Fatal.
	KindAuth ErrorKind = "auth"

	// KindModelRejection covers unknown models, refused parameters, and
	// over-long requests. Fatal.
	KindModelRejection ErrorKind = "model_rejection"
)

// Error is the typed provider error surfaced by adapters.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindRateLimit
}

// NewError builds a typed provider error.
func NewError(kind ErrorKind, provider, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: cause}
}

// IsRetryable reports whether err is a transient provider error. Untyped
// errors are never retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// ClassifyHTTPStatus maps a provider HTTP status to an error kind.
func ClassifyHTTPStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimit
	case status == 401 || status == 403:
		return KindAuth
	case status == 400 || status == 404 || status == 422:
		return KindModelRejection
	default:
		return KindNetwork
	}
}

// Classify wraps an arbitrary provider error with a best-effort kind, using
// message sniffing when the SDK exposes no status code. Already-typed
// errors pass through unchanged.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests"):
		return NewError(KindRateLimit, provider, "", err)
	case strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "authentication"):
		return NewError(KindAuth, provider, "", err)
	case strings.Contains(msg, "model not found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "context length") ||
		strings.Contains(msg, "maximum context") ||
		strings.Contains(msg, "invalid request"):
		return NewError(KindModelRejection, provider, "", err)
	default:
		return NewError(KindNetwork, provider, "", err)
	}
}
