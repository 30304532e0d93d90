package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, st := range Statuses {
		got, err := ParseStatus(string(st))
		require.NoError(t, err)
		require.Equal(t, st, got)
	}

	_, err := ParseStatus("bogus")
	require.True(t, errors.Is(err, ErrInvalidStatus))
	require.Contains(t, err.Error(), "in_progress")

	_, err = ParseStatus("OPEN")
	require.True(t, errors.Is(err, ErrInvalidStatus))
}

func TestNewPagination(t *testing.T) {
	require.Equal(t, Pagination{Page: 1, Limit: 10, Total: 0, Pages: 0}, NewPagination(1, 10, 0))
	require.Equal(t, Pagination{Page: 2, Limit: 10, Total: 25, Pages: 3}, NewPagination(2, 10, 25))
	require.Equal(t, Pagination{Page: 1, Limit: 10, Total: 10, Pages: 1}, NewPagination(1, 10, 10))
}

func TestNewTicketStats(t *testing.T) {
	s := NewTicketStats()
	require.Len(t, s.ByStatus, len(Statuses))
	require.Zero(t, s.Total)
}

func TestTicketPatch_IsEmpty(t *testing.T) {
	require.True(t, TicketPatch{}.IsEmpty())
	title := "x"
	require.False(t, TicketPatch{Title: &title}.IsEmpty())
}

func TestNewTicket_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      NewTicket
		wantErr error
	}{
		{name: "minimal", in: NewTicket{Title: "Db slow"}},
		{name: "with status", in: NewTicket{Title: "Db slow", Status: "pending"}},
		{name: "blank title", in: NewTicket{Title: "   "}, wantErr: ErrInvalidTicket},
		{name: "long title", in: NewTicket{Title: strings.Repeat("a", MaxTitleLength+1)}, wantErr: ErrInvalidTicket},
		{name: "bad status", in: NewTicket{Title: "Db slow", Status: "bogus"}, wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestTicketPatch_Validate(t *testing.T) {
	empty := ""
	bogus := "bogus"
	closed := "closed"

	require.NoError(t, TicketPatch{}.Validate())
	require.NoError(t, TicketPatch{Status: &closed}.Validate())
	require.True(t, errors.Is(TicketPatch{Title: &empty}.Validate(), ErrInvalidTicket))
	require.True(t, errors.Is(TicketPatch{Status: &bogus}.Validate(), ErrInvalidStatus))
}

func TestNewTicket_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOwner  int64
		wantTenant int64
	}{
		{name: "camelCase", body: `{"title":"a","userId":3,"organisationId":4}`, wantOwner: 3, wantTenant: 4},
		{name: "snake_case", body: `{"title":"a","user_id":3,"organisation_id":4}`, wantOwner: 3, wantTenant: 4},
		{name: "camelCase wins", body: `{"title":"a","userId":3,"user_id":9,"organisationId":4,"organisation_id":9}`, wantOwner: 3, wantTenant: 4},
		{name: "absent", body: `{"title":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in NewTicket
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))
			require.Equal(t, "a", in.Title)
			require.Equal(t, tt.wantOwner, in.OwnerUserID)
			require.Equal(t, tt.wantTenant, in.TenantID)
		})
	}

	var in NewTicket
	require.Error(t, json.Unmarshal([]byte(`{"user_id":"x"}`), &in))
}
