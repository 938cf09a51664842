package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wispberry-tech/wispy-admin/store"
)

// Kind is the classified category of a gateway failure
type Kind int

const (
	KindUnknown Kind = iota
	KindResourceMissing
	KindPermissionDenied
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindResourceMissing:
		return "resource_missing"
	case KindPermissionDenied:
		return "permission_denied"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Gateway operation names carried on Error.Op
const (
	OpList   = "list"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Error is the only error shape a Gateway returns.
//
// Error() is safe to show to an administrator. The backend failure it was
// classified from is kept for logs and reachable only through Diagnostic.
type Error struct {
	Kind    Kind
	Entity  string
	Op      string
	Message string

	diagnostic string
}

func (e *Error) Error() string {
	return e.Message
}

// Diagnostic returns the raw backend failure text, for logging only
func (e *Error) Diagnostic() string {
	return e.diagnostic
}

// KindOf reports the kind of a gateway error, or KindUnknown for anything else
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a gateway error of kind k
func IsKind(err error, k Kind) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == k
}

var (
	missingCodes = map[string]bool{
		"42P01":    true, // undefined_table
		"3F000":    true, // invalid_schema_name
		"PGRST205": true, // table not in schema cache
		"PGRST106": true, // schema not exposed
	}
	permissionCodes = map[string]bool{
		"42501":    true, // insufficient_privilege, also RLS violations
		"28000":    true, // invalid_authorization_specification
		"PGRST301": true, // JWT rejected
		"PGRST302": true, // anonymous access disabled
	}
	validationCodes = map[string]bool{
		"42703":    true, // undefined_column
		"PGRST100": true, // unparsable query
		"PGRST102": true, // invalid body
		"PGRST204": true, // column not in schema cache
	}
)

// Classify maps a backend failure to a Kind.
//
// A normalized store.Error is checked by code first, then by HTTP status, then by
// message. Transport and context errors are always KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnknown
	}
	if errors.Is(err, store.ErrNoRows) {
		return KindValidation
	}

	var serr *store.Error
	if errors.As(err, &serr) {
		if k, ok := classifyCode(serr.Code); ok {
			return k
		}
		if k, ok := classifyStatus(serr.Status); ok {
			return k
		}
		if k, ok := classifyMessage(serr.Message + " " + serr.Detail); ok {
			return k
		}
		return KindUnknown
	}

	if k, ok := classifyMessage(err.Error()); ok {
		return k
	}
	return KindUnknown
}

func classifyCode(code string) (Kind, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return KindUnknown, false
	}
	switch {
	case missingCodes[code]:
		return KindResourceMissing, true
	case permissionCodes[code]:
		return KindPermissionDenied, true
	case validationCodes[code]:
		return KindValidation, true
	case len(code) == 5 && (strings.HasPrefix(code, "22") || strings.HasPrefix(code, "23")):
		// data exception and integrity constraint violation classes
		return KindValidation, true
	}
	return KindUnknown, false
}

func classifyStatus(status int) (Kind, bool) {
	switch status {
	case http.StatusNotFound:
		return KindResourceMissing, true
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindPermissionDenied, true
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidation, true
	}
	return KindUnknown, false
}

var (
	missingPhrases    = []string{"no such table", "schema cache", "undefined table"}
	permissionPhrases = []string{"permission denied", "row-level security", "not authorized", "insufficient privilege"}
	validationPhrases = []string{"violates", "invalid input", "constraint failed", "out of range"}
)

func classifyMessage(msg string) (Kind, bool) {
	msg = strings.ToLower(msg)
	if strings.TrimSpace(msg) == "" {
		return KindUnknown, false
	}
	// "column ... does not exist" is a bad request, not a missing table
	if strings.Contains(msg, "does not exist") &&
		(strings.Contains(msg, "relation") || strings.Contains(msg, "table") || strings.Contains(msg, "schema")) {
		return KindResourceMissing, true
	}
	if containsAny(msg, missingPhrases) {
		return KindResourceMissing, true
	}
	if containsAny(msg, permissionPhrases) {
		return KindPermissionDenied, true
	}
	if containsAny(msg, validationPhrases) {
		return KindValidation, true
	}
	return KindUnknown, false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

var opVerbs = map[string]string{
	OpList:   "load",
	OpGet:    "load",
	OpCreate: "create",
	OpUpdate: "update",
	OpDelete: "delete",
}

// newError builds the classified error with its safe message. detail is appended
// only to validation messages, where it describes the caller's own input.
func newError(kind Kind, desc *Descriptor, op, detail string, cause error) *Error {
	label := desc.Label
	verb := opVerbs[op]
	if verb == "" {
		verb = op
	}

	var msg string
	switch kind {
	case KindResourceMissing:
		msg = fmt.Sprintf("Storage for %s is not set up yet. Ask an operator to provision it.", label)
	case KindPermissionDenied:
		msg = fmt.Sprintf("You are not allowed to %s %s.", verb, label)
	case KindValidation:
		msg = fmt.Sprintf("The %s data was rejected", label)
		if detail != "" {
			msg += ": " + detail
		}
		msg += "."
	default:
		msg = fmt.Sprintf("Could not %s %s right now. Please try again.", verb, label)
	}

	e := &Error{Kind: kind, Entity: desc.Kind, Op: op, Message: msg}
	switch {
	case cause != nil:
		e.diagnostic = cause.Error()
	case detail != "":
		e.diagnostic = detail
	}
	return e
}
