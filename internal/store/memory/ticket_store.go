package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/auth"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/query"
	"github.com/wolfeidau/tenantdesk/internal/store"
)

// TicketStore implements store.TicketStore using in-memory storage. Scoping
// is evaluated in process with the same policy and filter used to build SQL.
type TicketStore struct {
	db  *Database
	cfg query.Config
}

// NewTicketStore creates a new in-memory ticket store.
func NewTicketStore(db *Database, cfg query.Config) *TicketStore {
	cfg.ApplyDefaults()
	return &TicketStore{db: db, cfg: cfg}
}

// List returns one page of the tickets visible to p.
func (s *TicketStore) List(ctx context.Context, p models.Principal, f query.Filter) (*models.TicketPage, error) {
	if err := store.CheckPrincipal(p); err != nil {
		return nil, err
	}
	if err := f.CheckPage(s.cfg); err != nil {
		return nil, err
	}

	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var matched []*models.Ticket
	for _, t := range s.db.tickets {
		if visible(p, t) && f.Matches(t) {
			matched = append(matched, t)
		}
	}

	slices.SortFunc(matched, func(a, b *models.Ticket) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	total := int64(len(matched))
	start := min(f.Offset(), len(matched))
	end := min(start+f.Limit, len(matched))

	items := make([]*models.Ticket, 0, end-start)
	for _, t := range matched[start:end] {
		items = append(items, s.db.hydrate(t))
	}

	return &models.TicketPage{
		Items:      items,
		Pagination: models.NewPagination(f.Page, f.Limit, total),
	}, nil
}

// Get retrieves a ticket visible to p.
func (s *TicketStore) Get(ctx context.Context, p models.Principal, id int64) (*models.Ticket, error) {
	if err := store.CheckPrincipal(p); err != nil {
		return nil, err
	}

	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	t, ok := s.db.tickets[id]
	if !ok || !visible(p, t) {
		return nil, store.ErrNotFound
	}

	return s.db.hydrate(t), nil
}

// Create stores a new ticket owned by a user of p's organisation.
func (s *TicketStore) Create(ctx context.Context, p models.Principal, in models.NewTicket) (*models.Ticket, error) {
	if err := store.CheckPrincipal(p); err != nil {
		return nil, err
	}
	if !auth.CanCreateTickets(p) {
		return nil, fmt.Errorf("%w: %s principals cannot create tickets", store.ErrForbiddenOperation, p.Role())
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	status := models.StatusOpen
	if in.Status != "" {
		status = models.Status(in.Status)
	}
	ownerID := cmp.Or(in.OwnerUserID, p.UserID())
	tenantID := cmp.Or(in.TenantID, p.TenantID())

	if tenantID != p.TenantID() {
		return nil, fmt.Errorf("%w: cannot create tickets for organisation %d", store.ErrInvalidReference, tenantID)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	owner, ok := s.db.users[ownerID]
	if !ok {
		return nil, fmt.Errorf("%w: user %d does not exist", store.ErrInvalidReference, ownerID)
	}
	if _, ok := s.db.organizations[tenantID]; !ok {
		return nil, fmt.Errorf("%w: organisation %d does not exist", store.ErrInvalidReference, tenantID)
	}
	if owner.TenantID != tenantID {
		return nil, fmt.Errorf("%w: user %d does not belong to organisation %d", store.ErrInvalidReference, ownerID, tenantID)
	}

	now := s.db.now()
	s.db.lastTicketID++
	t := &models.Ticket{
		ID:          s.db.lastTicketID,
		Title:       in.Title,
		Description: cloneString(in.Description),
		Status:      status,
		OwnerUserID: ownerID,
		TenantID:    tenantID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.db.tickets[t.ID] = t

	log.Debug().Int64("ticket_id", t.ID).Stringer("principal", p).Msg("Created ticket")

	return s.db.hydrate(t), nil
}

// Update applies the patch to a ticket visible to p.
func (s *TicketStore) Update(ctx context.Context, p models.Principal, id int64, patch models.TicketPatch) (*models.Ticket, error) {
	if err := store.CheckPrincipal(p); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	t, ok := s.db.tickets[id]
	if !ok || !visible(p, t) {
		return nil, store.ErrNotFound
	}

	if patch.IsEmpty() {
		return s.db.hydrate(t), nil
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = cloneString(patch.Description)
	}
	if patch.Status != nil {
		t.Status = models.Status(*patch.Status)
	}
	t.UpdatedAt = s.db.now()

	log.Debug().Int64("ticket_id", t.ID).Stringer("principal", p).Msg("Updated ticket")

	return s.db.hydrate(t), nil
}

// Delete removes a ticket visible to p.
func (s *TicketStore) Delete(ctx context.Context, p models.Principal, id int64) error {
	if err := store.CheckPrincipal(p); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	t, ok := s.db.tickets[id]
	if !ok || !visible(p, t) {
		return store.ErrNotFound
	}

	delete(s.db.tickets, id)

	log.Debug().Int64("ticket_id", id).Stringer("principal", p).Msg("Deleted ticket")

	return nil
}

// Stats counts the tickets visible to p per status.
func (s *TicketStore) Stats(ctx context.Context, p models.Principal) (*models.TicketStats, error) {
	if err := store.CheckPrincipal(p); err != nil {
		return nil, err
	}

	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	stats := models.NewTicketStats()
	for _, t := range s.db.tickets {
		if !visible(p, t) {
			continue
		}
		stats.Total++
		stats.ByStatus[t.Status]++
	}

	return stats, nil
}

func visible(p models.Principal, t *models.Ticket) bool {
	return auth.IsUnrestricted(p) || t.TenantID == p.TenantID()
}

// hydrate returns a copy of t with the owner and organisation summaries
// filled in. Callers must hold the lock.
func (db *Database) hydrate(t *models.Ticket) *models.Ticket {
	clone := *t
	clone.Description = cloneString(t.Description)

	if u, ok := db.users[t.OwnerUserID]; ok {
		clone.Owner = &models.TicketOwner{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	if o, ok := db.organizations[t.TenantID]; ok {
		clone.Organization = &models.TicketOrganization{ID: o.ID, Name: o.Name}
	}

	return &clone
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
