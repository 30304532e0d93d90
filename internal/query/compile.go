package query

import (
	"maps"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/wolfeidau/tenantdesk/internal/models"
)

// OrderBy is the fixed ordering of every ticket list.
const OrderBy = "t.created_at DESC, t.id DESC"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Predicate is one SQL fragment together with the named arguments it binds.
type Predicate struct {
	SQL  string
	Args pgx.NamedArgs
}

// Compiled is the SQL form of a Filter.
type Compiled struct {
	Predicates []Predicate
	OrderBy    string
	Limit      int
	Offset     int
}

// Compile translates the filter into AND-combined predicates. Every value is
// carried as a named argument; the SQL text only ever contains placeholders.
func (f Filter) Compile() Compiled {
	c := Compiled{
		OrderBy: OrderBy,
		Limit:   f.Limit,
		Offset:  f.Offset(),
	}

	if f.Status != nil {
		c.Predicates = append(c.Predicates, Predicate{
			SQL:  "t.status = @status",
			Args: pgx.NamedArgs{"status": string(*f.Status)},
		})
	}
	if f.OwnerUserID != nil {
		c.Predicates = append(c.Predicates, Predicate{
			SQL:  "t.user_id = @owner_user_id",
			Args: pgx.NamedArgs{"owner_user_id": *f.OwnerUserID},
		})
	}
	if f.TenantID != nil {
		c.Predicates = append(c.Predicates, Predicate{
			SQL:  "t.organisation_id = @tenant_id",
			Args: pgx.NamedArgs{"tenant_id": *f.TenantID},
		})
	}
	if f.Search != nil {
		c.Predicates = append(c.Predicates, Predicate{
			SQL:  "(t.title ILIKE @search OR t.description ILIKE @search)",
			Args: pgx.NamedArgs{"search": "%" + likeEscaper.Replace(*f.Search) + "%"},
		})
	}
	if f.CreatedAfter != nil {
		c.Predicates = append(c.Predicates, Predicate{
			SQL:  "t.created_at >= @created_after",
			Args: pgx.NamedArgs{"created_after": *f.CreatedAfter},
		})
	}
	if f.CreatedBefore != nil {
		c.Predicates = append(c.Predicates, Predicate{
			SQL:  "t.created_at < @created_before",
			Args: pgx.NamedArgs{"created_before": *f.CreatedBefore},
		})
	}

	return c
}

// And returns a copy of c with p appended.
func (c Compiled) And(p Predicate) Compiled {
	out := c
	out.Predicates = append(append([]Predicate(nil), c.Predicates...), p)
	return out
}

// Where renders the predicates as a WHERE clause, or "" when there are none.
func (c Compiled) Where() string {
	if len(c.Predicates) == 0 {
		return ""
	}

	parts := make([]string, len(c.Predicates))
	for i, p := range c.Predicates {
		parts[i] = p.SQL
	}

	return "WHERE " + strings.Join(parts, " AND ")
}

// Args merges the named arguments of every predicate.
func (c Compiled) Args() pgx.NamedArgs {
	args := pgx.NamedArgs{}
	for _, p := range c.Predicates {
		maps.Copy(args, p.Args)
	}
	return args
}

// PageArgs is Args plus the limit and offset arguments.
func (c Compiled) PageArgs() pgx.NamedArgs {
	args := c.Args()
	args["limit"] = c.Limit
	args["offset"] = c.Offset
	return args
}

// Matches evaluates the filter predicates against an in-memory ticket.
// Pagination is not considered.
func (f Filter) Matches(t *models.Ticket) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.OwnerUserID != nil && t.OwnerUserID != *f.OwnerUserID {
		return false
	}
	if f.TenantID != nil && t.TenantID != *f.TenantID {
		return false
	}
	if f.Search != nil {
		needle := strings.ToLower(*f.Search)
		inTitle := strings.Contains(strings.ToLower(t.Title), needle)
		inDesc := t.Description != nil && strings.Contains(strings.ToLower(*t.Description), needle)
		if !inTitle && !inDesc {
			return false
		}
	}
	if f.CreatedAfter != nil && t.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}
