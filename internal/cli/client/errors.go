package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	networkErrorMessage = "Unable to reach the server. Please try again later."
	genericErrorMessage = "An unexpected error occurred"
)

// Kind classifies a failed API call
type Kind int

const (
	KindServer Kind = iota
	KindNetwork
	KindAuth
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	default:
		return "server"
	}
}

// Sentinels for errors.Is matching on an *Error's kind
var (
	ErrNetwork    = errors.New("network error")
	ErrAuth       = errors.New("authentication error")
	ErrValidation = errors.New("validation error")
	ErrServer     = errors.New("server error")
)

// Error is the normalized error returned by every Client call. Message is
// display-ready.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// KindOf returns the kind of a normalized error, or KindServer for anything else
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindServer
}

func networkError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: networkErrorMessage,
		Err:     err,
	}
}

// statusError builds an *Error from a non-2xx response
func statusError(statusCode int, body []byte) *Error {
	return &Error{
		Kind:       kindForStatus(statusCode),
		StatusCode: statusCode,
		Message:    messageFromBody(body),
	}
}

func kindForStatus(statusCode int) Kind {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindServer
	}
}

// errorBody covers the error shapes the API produces: {"detail": "..."},
// {"detail": [{"msg": "..."}]}, {"message": "..."} and {"error": "..."}
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type validationDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func messageFromBody(body []byte) string {
	var parsed errorBody
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil {
		return genericErrorMessage
	}

	if len(parsed.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(parsed.Detail, &detail); err == nil && detail != "" {
			return detail
		}

		var details []validationDetail
		if err := json.Unmarshal(parsed.Detail, &details); err == nil {
			msgs := make([]string, 0, len(details))
			for _, d := range details {
				if d.Msg != "" {
					msgs = append(msgs, d.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	if parsed.Message != "" {
		return parsed.Message
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	return genericErrorMessage
}
