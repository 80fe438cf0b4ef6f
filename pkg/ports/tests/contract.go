package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

// RunRecordStoreContract verifies that a RecordStore implementation complies
// with the port's semantics. Adapters call this from their own tests.
func RunRecordStoreContract(t *testing.T, store ports.RecordStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		in := domain.Installation{
			ID:             "inst-1",
			OrganizationID: "org-1",
			Platform:       "slack",
			Settings:       map[string]string{"channel": "#ops"},
			CreatedAt:      time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, store.Put(ctx, ports.KindInstallation, in.ID, in))

		var out domain.Installation
		require.NoError(t, store.Get(ctx, ports.KindInstallation, in.ID, &out))
		assert.Equal(t, in.OrganizationID, out.OrganizationID)
		assert.Equal(t, in.Settings, out.Settings)
	})

	t.Run("GetMissing", func(t *testing.T) {
		var out domain.Installation
		err := store.Get(ctx, ports.KindInstallation, "no-such-id", &out)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		rec := domain.ConnectorSource{ID: "src-1", Name: "first", Kind: "mcp"}
		require.NoError(t, store.Put(ctx, ports.KindConnectorSource, rec.ID, rec))
		rec.Name = "second"
		require.NoError(t, store.Put(ctx, ports.KindConnectorSource, rec.ID, rec))

		var out domain.ConnectorSource
		require.NoError(t, store.Get(ctx, ports.KindConnectorSource, rec.ID, &out))
		assert.Equal(t, "second", out.Name)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := domain.TokenRecord{ID: "tok-1", Provider: "github", AccessToken: "x"}
		require.NoError(t, store.Put(ctx, ports.KindToken, rec.ID, rec))
		require.NoError(t, store.Delete(ctx, ports.KindToken, rec.ID))

		var out domain.TokenRecord
		assert.ErrorIs(t, store.Get(ctx, ports.KindToken, rec.ID, &out), domain.ErrRecordNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.Delete(ctx, ports.KindToken, rec.ID))
	})

	t.Run("List", func(t *testing.T) {
		for _, id := range []string{"wf-a", "wf-b", "wf-c"} {
			run := domain.WorkflowRun{ID: id, ToolName: "lsp_hover", Status: domain.StatusSuccess}
			require.NoError(t, store.Put(ctx, ports.KindWorkflowRun, id, run))
		}
		ids, err := store.List(ctx, ports.KindWorkflowRun)
		require.NoError(t, err)
		assert.Subset(t, ids, []string{"wf-a", "wf-b", "wf-c"})

		// Kinds are isolated from each other.
		other, err := store.List(ctx, ports.KindToken)
		require.NoError(t, err)
		assert.NotContains(t, other, "wf-a")
	})
}
