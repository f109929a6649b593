// Package mailbox abstracts the mail source behind a Provider contract.
// The Gmail adapter is the primary implementation; the mbox adapter lets
// the pipeline run on a local Takeout export without OAuth.
package mailbox

import (
	"context"
	"errors"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// ErrHistoryExpired signals that the provider no longer honors the stored
// history cursor and a full sync is required.
var ErrHistoryExpired = errors.New("mailbox: history cursor expired")

// MessageRef identifies one message without its payload.
type MessageRef struct {
	ID       string
	ThreadID string
}

// Provider is the mail-source contract. Implementations must be safe for
// concurrent use.
type Provider interface {
	// ListMessages enumerates message refs matching a provider query,
	// one page at a time. An empty next token ends the enumeration.
	ListMessages(ctx context.Context, query, pageToken string) (refs []MessageRef, next string, err error)

	// FetchMessage retrieves the full canonical record plus attachment
	// metadata. Attachment payloads are never downloaded.
	FetchMessage(ctx context.Context, id string) (*domain.Message, []domain.Attachment, error)

	// HistoryDelta returns the ids of messages added since the cursor and
	// the new cursor. A stale cursor yields ErrHistoryExpired.
	HistoryDelta(ctx context.Context, cursor string) (added []string, newCursor string, err error)

	// CurrentCursor returns the provider's present history position.
	CurrentCursor(ctx context.Context) (string, error)

	// UserEmail returns the authenticated mailbox owner's address.
	UserEmail() string
}
