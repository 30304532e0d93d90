package models

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrInvalidStatus is returned for a status outside the enumerated set.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTicket is returned when ticket input fails field validation.
	ErrInvalidTicket = errors.New("invalid ticket")
)

// MaxTitleLength is the longest accepted ticket title, in characters.
const MaxTitleLength = 255

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusOpen, StatusPending, StatusInProgress, StatusResolved, StatusClosed}

// ParseStatus validates s against the enumerated statuses.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}

	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}

	return "", fmt.Errorf("%w: %q, must be one of: %s", ErrInvalidStatus, s, strings.Join(names, ", "))
}

// Ticket is owned by one user and one organisation, and the owner always
// belongs to that organisation.
type Ticket struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      Status    `json:"status"`
	OwnerUserID int64     `json:"userId"`
	TenantID    int64     `json:"organisationId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Populated on reads from the joined rows.
	Owner        *TicketOwner        `json:"user,omitempty"`
	Organization *TicketOrganization `json:"organisation,omitempty"`
}

// TicketOwner is the summary of the owning user returned with a ticket.
type TicketOwner struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TicketOrganization is the summary of the owning organisation returned with a ticket.
type TicketOrganization struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewTicket carries the fields used to create a ticket. Zero OwnerUserID and
// TenantID default to the calling principal; an empty Status defaults to open.
type NewTicket struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	OwnerUserID int64   `json:"userId"`
	TenantID    int64   `json:"organisationId"`
}

// UnmarshalJSON also accepts user_id and organisation_id; the camelCase
// names win when both are present.
func (t *NewTicket) UnmarshalJSON(b []byte) error {
	type plain NewTicket
	var in struct {
		plain
		UserID         int64 `json:"user_id"`
		OrganisationID int64 `json:"organisation_id"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	*t = NewTicket(in.plain)
	t.OwnerUserID = cmp.Or(t.OwnerUserID, in.UserID)
	t.TenantID = cmp.Or(t.TenantID, in.OrganisationID)

	return nil
}

// Validate checks the fields that do not need a lookup. It does not apply defaults.
func (t NewTicket) Validate() error {
	if err := validateTitle(t.Title); err != nil {
		return err
	}
	if t.Status != "" {
		if _, err := ParseStatus(t.Status); err != nil {
			return err
		}
	}
	return nil
}

// TicketPatch holds the only fields an update may change.
type TicketPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TicketPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil
}

// Validate checks the fields present in the patch.
func (p TicketPatch) Validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Status != nil {
		if _, err := ParseStatus(*p.Status); err != nil {
			return err
		}
	}
	return nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n == 0 {
		return fmt.Errorf("%w: title is required", ErrInvalidTicket)
	}
	if n > MaxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalidTicket, MaxTitleLength)
	}
	return nil
}

// Pagination describes the page returned by a list call.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination computes the page count for total rows at limit per page.
func NewPagination(page, limit int, total int64) Pagination {
	var pages int64
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// TicketPage is one page of tickets plus pagination details.
type TicketPage struct {
	Items      []*Ticket  `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// TicketStats aggregates ticket counts within the caller's scope.
type TicketStats struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"byStatus"`
}

// NewTicketStats returns stats with every status present at zero.
func NewTicketStats() *TicketStats {
	s := &TicketStats{ByStatus: make(map[Status]int64, len(Statuses))}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	return s
}
