// Package fault holds the structured error value returned by the eAK transport
// and threaded through the sync services.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a remote call did not yield usable data
type Kind string

const (
	Network        Kind = "network"
	Auth           Kind = "auth"
	NotFound       Kind = "not_found"
	HTTP           Kind = "http"
	RemoteProtocol Kind = "remote"
	RemoteHTML     Kind = "html"
	Validation     Kind = "validation"
)

// Sentinel errors matched through Fault.Is
var (
	ErrNetwork        = errors.New("eAK endpoint unreachable")
	ErrAuth           = errors.New("eAK rejected the auth token")
	ErrNotFound       = errors.New("eAK endpoint not found")
	ErrHTTP           = errors.New("eAK returned an unexpected HTTP status")
	ErrRemoteProtocol = errors.New("eAK returned a fault")
	ErrRemoteHTML     = errors.New("eAK returned an HTML error page")
	ErrValidation     = errors.New("document failed pre-submission checks")
)

var kindSentinels = map[Kind]error{
	Network:        ErrNetwork,
	Auth:           ErrAuth,
	NotFound:       ErrNotFound,
	HTTP:           ErrHTTP,
	RemoteProtocol: ErrRemoteProtocol,
	RemoteHTML:     ErrRemoteHTML,
	Validation:     ErrValidation,
}

// Fault is a structured, non-exceptional error describing why a remote call
// did not yield usable data.
type Fault struct {
	// Op is the SOAP action or step that failed
	Op   string
	Kind Kind
	// Status is the HTTP status, zero when no response was received
	Status int
	// Code is the remote ErrorCode or faultcode
	Code    string
	Message string
	// Raw is the response body, if any, kept for the audit log
	Raw string
	Err error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "eak: %s failed (%s", f.Op, f.Kind)
	if f.Status != 0 {
		fmt.Fprintf(&b, ", status %d", f.Status)
	}
	b.WriteString(")")
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches the sentinel of the fault kind as well as the wrapped error.
func (f *Fault) Is(target error) bool {
	if s, ok := kindSentinels[f.Kind]; ok && s == target {
		return true
	}
	return f.Err != nil && errors.Is(f.Err, target)
}

// UserMessage is the text shown to operators and written to the audit log
func (f *Fault) UserMessage() string {
	switch f.Kind {
	case Auth:
		return "Could not post to eAK. An error occurred. This is due to invalid Token"
	case NotFound:
		return "Could not post to eAK. Client Error: Not Found url / Invalid url"
	case Network:
		return "Could not post to eAK. Unexpected error! please report this to your administrator. " + f.Message
	case HTTP:
		return fmt.Sprintf("Could not post to eAK. Unexpected HTTP status %d", f.Status)
	}
	return f.Message
}

// New creates a fault of the given kind.
func New(op string, kind Kind, message string) *Fault {
	return &Fault{Op: op, Kind: kind, Message: message}
}

// Wrap creates a fault of the given kind around err.
func Wrap(op string, kind Kind, err error) *Fault {
	return &Fault{Op: op, Kind: kind, Message: err.Error(), Err: err}
}

// As extracts a *Fault from err.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Message returns the operator message for any error, preferring the fault's own text
func Message(err error) string {
	if f, ok := As(err); ok {
		return f.UserMessage()
	}
	return err.Error()
}
