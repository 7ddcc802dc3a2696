package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFault_IsMatchesKindSentinel(t *testing.T) {
	f := New("BuyInvoiceExportRequest", Auth, "")

	assert.True(t, errors.Is(f, ErrAuth))
	assert.False(t, errors.Is(f, ErrNetwork))
}

func TestFault_AsThroughWrapping(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	wrapped := fmt.Errorf("sync failed: %w", Wrap("EInvoice", Network, inner))

	f, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, Network, f.Kind)
	assert.True(t, errors.Is(wrapped, inner))
	assert.Contains(t, f.UserMessage(), "connection refused")
}

func TestFault_ErrorString(t *testing.T) {
	f := &Fault{Op: "CompanyStatusRequest", Kind: HTTP, Status: 502}
	assert.Equal(t, "eak: CompanyStatusRequest failed (http, status 502)", f.Error())
	assert.Equal(t, "Could not post to eAK. Unexpected HTTP status 502", f.UserMessage())
}

func TestMessage_PlainError(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
