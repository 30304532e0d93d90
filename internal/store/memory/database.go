package memory

import (
	"sync"
	"time"

	"github.com/wolfeidau/tenantdesk/internal/models"
)

// Database is the state shared by the in-memory stores. Tickets reference
// users and users reference organisations, so the three maps share one lock.
// This implementation is for testing only - data is lost on restart.
type Database struct {
	mu sync.RWMutex

	organizations map[int64]*models.Organization // org_id -> Organization
	users         map[int64]*models.User         // user_id -> User
	usersByEmail  map[string]int64               // lower(email) -> user_id
	tickets       map[int64]*models.Ticket       // ticket_id -> Ticket

	lastOrgID    int64
	lastUserID   int64
	lastTicketID int64

	now func() time.Time
}

// NewDatabase creates an empty in-memory database.
func NewDatabase() *Database {
	return &Database{
		organizations: make(map[int64]*models.Organization),
		users:         make(map[int64]*models.User),
		usersByEmail:  make(map[string]int64),
		tickets:       make(map[int64]*models.Ticket),
		now:           func() time.Time { return time.Now().UTC() },
	}
}
