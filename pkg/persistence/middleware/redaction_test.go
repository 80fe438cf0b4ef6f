package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/adapters/memory"
	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

func TestRedactionMasksMatchingKeys(t *testing.T) {
	ctx := context.Background()
	store := NewRedactionMiddleware([]string{"(?i)token", "(?i)secret"})(memory.NewStore())

	inst := domain.Installation{
		ID:             "inst-1",
		OrganizationID: "org-1",
		Platform:       "slack",
		Settings: map[string]string{
			"webhook_secret": "whsec_123",
			"channel":        "#general",
		},
	}
	require.NoError(t, store.Put(ctx, ports.KindInstallation, inst.ID, inst))

	var raw map[string]any
	require.NoError(t, store.Get(ctx, ports.KindInstallation, "inst-1", &raw))

	settings, ok := raw["settings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "***", settings["webhook_secret"])
	assert.Equal(t, "#general", settings["channel"])
	assert.Equal(t, "org-1", raw["organization_id"])
}

func TestRedactionDoesNotMutateCaller(t *testing.T) {
	ctx := context.Background()
	store := NewRedactionMiddleware([]string{"access_token"})(memory.NewStore())

	token := domain.TokenRecord{ID: "tok-1", AccessToken: "gho_secret"}
	require.NoError(t, store.Put(ctx, ports.KindToken, token.ID, token))

	assert.Equal(t, "gho_secret", token.AccessToken)

	var raw map[string]any
	require.NoError(t, store.Get(ctx, ports.KindToken, "tok-1", &raw))
	assert.Equal(t, "***", raw["access_token"])
}

func TestChainOrder(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStore()

	key := testKey(t)
	store := Chain(backing,
		NewRedactionMiddleware([]string{"refresh_token"}),
		NewEncryptionMiddleware(EncryptionConfig{ActiveKey: key, Kinds: []string{ports.KindToken}}),
	)

	token := domain.TokenRecord{ID: "tok-1", AccessToken: "gho_secret", RefreshToken: "ghr_secret"}
	require.NoError(t, store.Put(ctx, ports.KindToken, token.ID, token))

	// Redaction runs before encryption: the decrypted record has the
	// refresh token masked but the access token intact.
	var raw map[string]any
	require.NoError(t, store.Get(ctx, ports.KindToken, "tok-1", &raw))
	assert.Equal(t, "***", raw["refresh_token"])
	assert.Equal(t, "gho_secret", raw["access_token"])

	// And the backing store holds only the envelope.
	var stored map[string]any
	require.NoError(t, backing.Get(ctx, ports.KindToken, "tok-1", &stored))
	assert.Contains(t, stored, "__encrypted__")
}
