package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tradmak/aixos/internal/domain"
)

// The platform owns persistence, auth, and row-level authorization. These
// interfaces are the whole of what the console assumes about it.

type MutateOp string

const (
	OpInsert MutateOp = "insert"
	OpUpdate MutateOp = "update"
	OpDelete MutateOp = "delete"
)

// Filter maps a column to a PostgREST-style predicate ("eq.42", "is.null").
// Use the helpers below instead of writing predicates by hand.
type Filter map[string]string

func Eq(v string) string  { return "eq." + v }
func Neq(v string) string { return "neq." + v }
func IsNull() string      { return "is.null" }

func In(vs []string) string {
	return "in.(" + strings.Join(vs, ",") + ")"
}

type Order struct {
	Column string
	Desc   bool
}

func Asc(col string) *Order  { return &Order{Column: col} }
func Desc(col string) *Order { return &Order{Column: col, Desc: true} }

// Data is the table CRUD surface.
type Data interface {
	// Query returns rows matching filter, ordered, optionally limited
	// (limit <= 0 means no limit). Select columns default to * unless
	// the filter carries a "select" key.
	Query(ctx context.Context, table string, filter Filter, order *Order, limit int) ([]domain.Row, error)
	// Mutate applies op. Insert ignores filter and returns the created
	// row; update and delete are scoped by filter.
	Mutate(ctx context.Context, table string, op MutateOp, payload map[string]any, filter Filter) (domain.Row, error)
	Count(ctx context.Context, table string, filter Filter) (int64, error)
	// RPC invokes a platform stored procedure.
	RPC(ctx context.Context, fn string, args map[string]any) (json.RawMessage, error)
}

type EventOp string

const (
	EventInsert EventOp = "INSERT"
	EventUpdate EventOp = "UPDATE"
	EventDelete EventOp = "DELETE"
)

// Event is one change-feed delivery.
type Event struct {
	Table string
	Op    EventOp
	Row   domain.Row
	At    time.Time
}

// Unsubscribe tears down one subscription. Safe to call more than once.
type Unsubscribe func()

// Feed is the row-level change feed. filterColumn/filterValue scope the
// channel to one entity; an empty filterColumn subscribes to the whole
// table. Events for a subscription stop before Subscribe's returned
// Unsubscribe returns.
type Feed interface {
	Subscribe(ctx context.Context, table, filterColumn, filterValue string, onEvent func(Event)) (Unsubscribe, error)
}

// AuthState is what the auth endpoint reports about the session.
type AuthState struct {
	SignedIn    bool
	AccessToken string
	AgentUserID string
	ExpiresAt   time.Time
}

// Auth is the platform session surface. Token verification for inbound
// requests happens in middleware with the shared JWT secret; this client
// only manages the console's own service session.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (AuthState, error)
	SignUp(ctx context.Context, email, password string) (AuthState, error)
	SignOut(ctx context.Context) error
	OnAuthChange(fn func(AuthState)) Unsubscribe
}

// QueryError wraps a failed platform call with enough context to log.
type QueryError struct {
	Table  string
	Status int
	Body   string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("platform query on %s failed: status %d: %s", e.Table, e.Status, e.Body)
}
