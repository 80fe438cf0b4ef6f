package ports

import "context"

// Record kinds persisted by the backend's CRUD services.
const (
	KindInstallation    = "installation"
	KindWorkflowRun     = "workflow"
	KindConnectorSource = "source"
	KindToken           = "token"
)

// RecordStore persists backend records keyed by (kind, id). Values are
// JSON-serializable structs from pkg/domain. Implementations must be safe
// for concurrent use.
type RecordStore interface {
	// Put persists value under (kind, id), overwriting any previous value.
	Put(ctx context.Context, kind, id string, value any) error

	// Get loads the record into out. Returns domain.ErrRecordNotFound when
	// the record does not exist.
	Get(ctx context.Context, kind, id string, out any) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, kind, id string) error

	// List returns the IDs of all records of the given kind.
	List(ctx context.Context, kind string) ([]string, error)
}
