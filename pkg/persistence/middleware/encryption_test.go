package middleware

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/adapters/memory"
	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(t)})(memory.NewStore())

	token := domain.TokenRecord{
		ID:             "tok-1",
		InstallationID: "inst-1",
		Provider:       "github",
		AccessToken:    "gho_secret",
	}
	require.NoError(t, store.Put(ctx, ports.KindToken, token.ID, token))

	var loaded domain.TokenRecord
	require.NoError(t, store.Get(ctx, ports.KindToken, "tok-1", &loaded))
	assert.Equal(t, token, loaded)
}

func TestEncryptionHidesPlaintextAtRest(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()
	store := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(t)})(backing)

	token := domain.TokenRecord{ID: "tok-1", AccessToken: "gho_secret"}
	require.NoError(t, store.Put(ctx, ports.KindToken, token.ID, token))

	// The backing store must only see the envelope.
	var raw map[string]any
	require.NoError(t, backing.Get(ctx, ports.KindToken, "tok-1", &raw))
	assert.Contains(t, raw, "__encrypted__")
	assert.NotContains(t, raw, "access_token")
}

func TestEncryptionKeyRotation(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()
	oldKey := testKey(t)
	newKey := testKey(t)

	oldStore := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: oldKey})(backing)
	token := domain.TokenRecord{ID: "tok-1", AccessToken: "gho_secret"}
	require.NoError(t, oldStore.Put(ctx, ports.KindToken, token.ID, token))

	// Rotated config still reads records written under the old key.
	rotated := NewEncryptionMiddleware(EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(backing)

	var loaded domain.TokenRecord
	require.NoError(t, rotated.Get(ctx, ports.KindToken, "tok-1", &loaded))
	assert.Equal(t, "gho_secret", loaded.AccessToken)

	// Without the fallback the read must fail.
	strict := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: newKey})(backing)
	assert.Error(t, strict.Get(ctx, ports.KindToken, "tok-1", &loaded))
}

func TestEncryptionScopedKinds(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()
	store := NewEncryptionMiddleware(EncryptionConfig{
		ActiveKey: testKey(t),
		Kinds:     []string{ports.KindToken},
	})(backing)

	run := domain.WorkflowRun{ID: "run-1", ToolName: "lsp_hover"}
	require.NoError(t, store.Put(ctx, ports.KindWorkflowRun, run.ID, run))

	// Unlisted kinds stay in the clear.
	var raw map[string]any
	require.NoError(t, backing.Get(ctx, ports.KindWorkflowRun, "run-1", &raw))
	assert.Equal(t, "lsp_hover", raw["tool_name"])
}

func TestEncryptionRejectsPlainRecord(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()
	token := domain.TokenRecord{ID: "tok-1", AccessToken: "gho_secret"}
	require.NoError(t, backing.Put(ctx, ports.KindToken, token.ID, token))

	store := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(t)})(backing)

	var loaded domain.TokenRecord
	err := store.Get(ctx, ports.KindToken, "tok-1", &loaded)
	assert.ErrorContains(t, err, "envelope")
}

func TestEncryptionRequiresFullKey(t *testing.T) {
	assert.Panics(t, func() {
		NewEncryptionMiddleware(EncryptionConfig{ActiveKey: []byte("short")})
	})
}
