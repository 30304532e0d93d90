package commands

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/wolfeidau/tenantdesk/internal/client"
	"github.com/wolfeidau/tenantdesk/internal/models"
)

// TicketsCmd groups the ticket commands.
type TicketsCmd struct {
	List   TicketsListCmd   `cmd:"" default:"withargs" help:"List tickets"`
	Show   TicketsShowCmd   `cmd:"" help:"Show a ticket"`
	Create TicketsCreateCmd `cmd:"" help:"Create a ticket"`
	Update TicketsUpdateCmd `cmd:"" help:"Update a ticket"`
	Delete TicketsDeleteCmd `cmd:"" help:"Delete a ticket"`
	Stats  TicketsStatsCmd  `cmd:"" help:"Show ticket counts per status"`
}

type TicketsListCmd struct {
	Status        string `help:"status to filter by (open, pending, in_progress, resolved, closed)"`
	Owner         int64  `help:"owner user id to filter by"`
	Organisation  int64  `help:"organisation id to filter by (admins)"`
	Search        string `short:"q" help:"text to search for in title and description"`
	CreatedAfter  string `help:"only tickets created at or after this date (YYYY-MM-DD or RFC3339)"`
	CreatedBefore string `help:"only tickets created before this date (YYYY-MM-DD or RFC3339)"`
	Page          int    `help:"page number" default:"1"`
	Limit         int    `help:"tickets per page" default:"20"`

	Auth AuthFlags `embed:""`
}

func (l *TicketsListCmd) params() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	setID := func(key string, id int64) {
		if id > 0 {
			v.Set(key, strconv.FormatInt(id, 10))
		}
	}

	set("status", l.Status)
	setID("user_id", l.Owner)
	setID("organisation_id", l.Organisation)
	set("q", l.Search)
	set("createdAfter", l.CreatedAfter)
	set("createdBefore", l.CreatedBefore)
	v.Set("page", strconv.Itoa(l.Page))
	v.Set("limit", strconv.Itoa(l.Limit))

	return v
}

func (l *TicketsListCmd) Run(ctx context.Context, globals *Globals) error {
	api, err := l.Auth.client(globals)
	if err != nil {
		return err
	}

	list, err := api.ListTickets(ctx, l.params())
	if err != nil {
		return fmt.Errorf("failed to list tickets: %w", err)
	}

	return printTickets(os.Stdout, list)
}

type TicketsShowCmd struct {
	ID int64 `arg:"" help:"ticket id"`

	Auth AuthFlags `embed:""`
}

func (c *TicketsShowCmd) Run(ctx context.Context, globals *Globals) error {
	api, err := c.Auth.client(globals)
	if err != nil {
		return err
	}

	t, err := api.GetTicket(ctx, c.ID)
	if err != nil {
		return err
	}

	printTicket(os.Stdout, t)
	return nil
}

type TicketsCreateCmd struct {
	Title       string `help:"ticket title" required:""`
	Description string `help:"ticket description"`
	Status      string `help:"initial status" default:"open"`

	Auth AuthFlags `embed:""`
}

func (c *TicketsCreateCmd) Run(ctx context.Context, globals *Globals) error {
	api, err := c.Auth.client(globals)
	if err != nil {
		return err
	}

	in := models.NewTicket{Title: c.Title, Status: c.Status}
	if c.Description != "" {
		in.Description = &c.Description
	}

	t, err := api.CreateTicket(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	fmt.Printf("Created ticket %d\n", t.ID)
	return nil
}

type TicketsUpdateCmd struct {
	ID          int64   `arg:"" help:"ticket id"`
	Title       *string `help:"new title"`
	Description *string `help:"new description"`
	Status      *string `help:"new status"`

	Auth AuthFlags `embed:""`
}

func (c *TicketsUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	patch := models.TicketPatch{Title: c.Title, Description: c.Description, Status: c.Status}
	if patch.IsEmpty() {
		return fmt.Errorf("nothing to update, pass --title, --description or --status")
	}

	api, err := c.Auth.client(globals)
	if err != nil {
		return err
	}

	t, err := api.UpdateTicket(ctx, c.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}

	printTicket(os.Stdout, t)
	return nil
}

type TicketsDeleteCmd struct {
	ID int64 `arg:"" help:"ticket id"`

	Auth AuthFlags `embed:""`
}

func (c *TicketsDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	api, err := c.Auth.client(globals)
	if err != nil {
		return err
	}

	if err := api.DeleteTicket(ctx, c.ID); err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("ticket %d not found", c.ID)
		}
		return err
	}

	fmt.Printf("Deleted ticket %d\n", c.ID)
	return nil
}

type TicketsStatsCmd struct {
	Auth AuthFlags `embed:""`
}

func (c *TicketsStatsCmd) Run(ctx context.Context, globals *Globals) error {
	api, err := c.Auth.client(globals)
	if err != nil {
		return err
	}

	stats, err := api.TicketStats(ctx)
	if err != nil {
		return err
	}

	return printStats(os.Stdout, stats)
}

func printTickets(out io.Writer, list *client.TicketList) error {
	if len(list.Tickets) == 0 {
		fmt.Fprintln(out, "No tickets found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tOWNER\tORGANISATION\tCREATED")

	for _, t := range list.Tickets {
		title := t.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}

		owner := strconv.FormatInt(t.OwnerUserID, 10)
		if t.Owner != nil {
			owner = t.Owner.Email
		}

		org := strconv.FormatInt(t.TenantID, 10)
		if t.Organization != nil {
			org = t.Organization.Name
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, title, owner, org, t.CreatedAt.Local().Format("2006-01-02 15:04"))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	p := list.Pagination
	fmt.Fprintf(out, "\nPage %d/%d, %d tickets in total\n", p.Page, max(p.Pages, 1), p.Total)
	if int64(p.Page) < p.Pages {
		fmt.Fprintf(out, "Use --page=%d to see the next page\n", p.Page+1)
	}

	return nil
}

func printTicket(out io.Writer, t *models.Ticket) {
	fmt.Fprintf(out, "#%d %s\n", t.ID, t.Title)
	fmt.Fprintf(out, "  status:       %s\n", t.Status)
	if t.Owner != nil {
		fmt.Fprintf(out, "  owner:        %s <%s>\n", t.Owner.Name, t.Owner.Email)
	}
	if t.Organization != nil {
		fmt.Fprintf(out, "  organisation: %s\n", t.Organization.Name)
	}
	fmt.Fprintf(out, "  created:      %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  updated:      %s\n", t.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if t.Description != nil && strings.TrimSpace(*t.Description) != "" {
		fmt.Fprintf(out, "\n%s\n", *t.Description)
	}
}

func printStats(out io.Writer, stats *models.TicketStats) error {
	statuses := make([]string, 0, len(stats.ByStatus))
	for s := range stats.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%d\n", s, stats.ByStatus[models.Status(s)])
	}
	fmt.Fprintf(w, "total\t%d\n", stats.Total)

	return w.Flush()
}
