package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/users"
)

// CodeNotProvisioned is the discriminator the backend puts on 401/403
// responses for accounts that signed in but were never granted access.
const CodeNotProvisioned = "NOT_PROVISIONED"

// Error is a failed backend call. It unwraps to exactly one class from
// internal/errors and, for transport failures, to the underlying cause.
type Error struct {
	Op          string
	Status      int    // zero for transport failures
	Code        string // machine readable code when the body carried one
	Detail      string
	PendingUser *users.Identity // set with CodeNotProvisioned when the body carried the user
	Class       error
	Cause       error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %v", e.Op, e.Class)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Cause}
}

func transportError(op string, cause error) *Error {
	return &Error{Op: op, Class: apperrors.ErrUnavailable, Cause: cause}
}

// errorBody covers the shapes FastAPI produces:
//
//	{"detail": "Invalid credentials"}
//	{"detail": [{"msg": "field required", ...}]}
//	{"detail": {"code": "NOT_PROVISIONED", "user": {...}}}
//	{"code": "NOT_PROVISIONED", "message": "...", "user": {...}}
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	User    map[string]any  `json:"user"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

func statusError(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Code = eb.Code
		e.Detail = eb.Message
		user := eb.User

		if len(eb.Detail) > 0 {
			var asString string
			var asObject errorBody
			var asList []validationItem
			switch {
			case json.Unmarshal(eb.Detail, &asString) == nil:
				e.Detail = asString
			case json.Unmarshal(eb.Detail, &asObject) == nil:
				if asObject.Code != "" {
					e.Code = asObject.Code
				}
				if asObject.Message != "" {
					e.Detail = asObject.Message
				}
				if asObject.User != nil {
					user = asObject.User
				}
			case json.Unmarshal(eb.Detail, &asList) == nil:
				msgs := make([]string, 0, len(asList))
				for _, item := range asList {
					msgs = append(msgs, item.Msg)
				}
				e.Detail = strings.Join(msgs, "; ")
			}
		}
		if e.Code == CodeNotProvisioned {
			e.PendingUser = users.NormalizeIdentity(user)
		}
	}
	if e.Detail == "" {
		e.Detail = http.StatusText(status)
	}
	e.Class = classify(status, e.Code)
	return e
}

func classify(status int, code string) error {
	switch {
	case (status == http.StatusUnauthorized || status == http.StatusForbidden) && code == CodeNotProvisioned:
		return apperrors.ErrNotProvisioned
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.ErrUnauthorized
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.ErrUnavailable
	default:
		return apperrors.ErrValidation
	}
}

// AsError returns the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if apperrors.As(err, &e) {
		return e, true
	}
	return nil, false
}
