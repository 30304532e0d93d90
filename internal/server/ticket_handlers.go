package server

import (
	"fmt"
	"net/http"

	"github.com/wolfeidau/tenantdesk/internal/auth"
	"github.com/wolfeidau/tenantdesk/internal/models"
	"github.com/wolfeidau/tenantdesk/internal/query"
)

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r, auth.PermTicketsRead)
	if err != nil {
		respondError(w, r, err)
		return
	}

	f, err := query.Parse(query.ParamsFromValues(r.URL.Query()), s.cfg.Query)
	if err != nil {
		respondError(w, r, err)
		return
	}

	page, err := s.stores.Tickets.List(r.Context(), p, f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondPage(w, r, "Tickets retrieved successfully", page.Items, page.Pagination)
}

func (s *Server) ticketStats(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r, auth.PermTicketsRead)
	if err != nil {
		respondError(w, r, err)
		return
	}

	stats, err := s.stores.Tickets.Stats(r.Context(), p)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Ticket statistics retrieved successfully", stats)
}

func (s *Server) getTicket(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r, auth.PermTicketsRead)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ticket, err := s.stores.Tickets.Get(r.Context(), p, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// The lookup above is scoped, so a matching validator never leaks a
	// ticket the caller cannot read.
	etag := ticketETag(ticket)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Header().Set("Vary", "Authorization")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respond(w, r, http.StatusOK, "Ticket retrieved successfully", ticket)
}

func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r, auth.PermTicketsCreate)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var in models.NewTicket
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	ticket, err := s.stores.Tickets.Create(r.Context(), p, in)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "Ticket created successfully", ticket)
}

func (s *Server) updateTicket(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r, auth.PermTicketsWrite)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var patch models.TicketPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	ticket, err := s.stores.Tickets.Update(r.Context(), p, id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Ticket updated successfully", ticket)
}

func (s *Server) deleteTicket(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r, auth.PermTicketsWrite)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.stores.Tickets.Delete(r.Context(), p, id); err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, "Ticket deleted successfully", nil)
}

func ticketETag(t *models.Ticket) string {
	return fmt.Sprintf(`"%d-%d"`, t.ID, t.UpdatedAt.UnixNano())
}
