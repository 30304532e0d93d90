package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/query"
)

// Sentinel errors shared by every store implementation. Callers see one of
// these kinds; internal details are wrapped behind them.
var (
	ErrInvalidPrincipal  = models.ErrInvalidPrincipal
	ErrInvalidFilter     = query.ErrInvalidFilter
	ErrInvalidPagination = query.ErrInvalidPagination
	ErrInvalidStatus     = models.ErrInvalidStatus
	ErrInvalidTicket     = models.ErrInvalidTicket

	// ErrNotFound covers both absent rows and rows outside the caller's scope.
	ErrNotFound             = errors.New("not found")
	ErrForbiddenOperation   = errors.New("forbidden operation")
	ErrInvalidReference     = errors.New("invalid reference")
	ErrBindingInconsistency = errors.New("principal binding inconsistency")
	ErrConflict             = errors.New("resource already exists")
	ErrInvalidInput         = errors.New("invalid input")
)

// CheckPrincipal rejects a principal that was never constructed. Every
// TicketStore operation calls it before touching storage.
func CheckPrincipal(p models.Principal) error {
	if p.IsZero() {
		return fmt.Errorf("%w: no principal", ErrInvalidPrincipal)
	}
	return nil
}

// TicketStore is the tenant-scoped ticket repository. Every operation runs on
// behalf of one principal and only sees the rows that principal may see.
type TicketStore interface {
	// List returns one page of visible tickets ordered newest first, together
	// with the total number of visible tickets matching the filter.
	List(ctx context.Context, p models.Principal, f query.Filter) (*models.TicketPage, error)

	// Get returns ErrNotFound when the ticket is absent or not visible.
	Get(ctx context.Context, p models.Principal, id int64) (*models.Ticket, error)

	// Create returns ErrForbiddenOperation for admin principals and
	// ErrInvalidReference when the owner does not belong to the tenant.
	Create(ctx context.Context, p models.Principal, in models.NewTicket) (*models.Ticket, error)

	// Update applies title, description and status only.
	Update(ctx context.Context, p models.Principal, id int64, patch models.TicketPatch) (*models.Ticket, error)

	// Delete returns ErrNotFound under the same visibility rule as Get.
	Delete(ctx context.Context, p models.Principal, id int64) error

	// Stats counts visible tickets per status.
	Stats(ctx context.Context, p models.Principal) (*models.TicketStats, error)
}
