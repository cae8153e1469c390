package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-intake/internal/ddl"
	"duck-intake/internal/domain"
)

type memStore struct {
	grants  []domain.CredentialGrant
	failErr error
}

func (m *memStore) ListGrants(_ context.Context) ([]domain.CredentialGrant, error) {
	return m.grants, m.failErr
}

func (m *memStore) CreateGrant(_ context.Context, g domain.CredentialGrant) error {
	if m.failErr != nil {
		return m.failErr
	}
	for _, existing := range m.grants {
		if existing.TokenHash == g.TokenHash && existing.Collection == g.Collection {
			return nil
		}
	}
	m.grants = append(m.grants, g)
	return nil
}

func (m *memStore) DeleteGrant(_ context.Context, tokenHash, collection string) error {
	if m.failErr != nil {
		return m.failErr
	}
	kept := m.grants[:0]
	for _, g := range m.grants {
		if g.TokenHash != tokenHash || g.Collection != collection {
			kept = append(kept, g)
		}
	}
	m.grants = kept
	return nil
}

func TestService_GrantPersistsAndApplies(t *testing.T) {
	store := &memStore{}
	reg := NewRegistry()
	svc := NewService(store, reg, nil)

	require.NoError(t, svc.Grant(context.Background(), domain.GrantRequest{Token: "secret-token", Collection: "events"}))

	require.Len(t, store.grants, 1)
	assert.Equal(t, domain.HashToken("secret-token"), store.grants[0].TokenHash)
	assert.Equal(t, "secret-t", store.grants[0].KeyPrefix)
	known, allowed := reg.Allows("secret-token", "events")
	assert.True(t, known)
	assert.True(t, allowed)
}

func TestService_GrantValidation(t *testing.T) {
	svc := NewService(&memStore{}, NewRegistry(), nil)

	err := svc.Grant(context.Background(), domain.GrantRequest{Collection: "events"})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, err.Error(), "token is required")
}

func TestService_GrantRejectsUnwritableCollection(t *testing.T) {
	store := &memStore{}
	reg := NewRegistry()
	svc := NewService(store, reg, nil)

	for _, coll := range []string{"a.b", "my-events", "1events", `x"y`} {
		t.Run(coll, func(t *testing.T) {
			err := svc.Grant(context.Background(), domain.GrantRequest{Token: "secret-token", Collection: coll})
			var validation *domain.ValidationError
			require.ErrorAs(t, err, &validation)
		})
	}
	assert.Empty(t, store.grants)
	assert.Equal(t, 0, reg.Len())
}

// Grantable collections and creatable tables must follow the same rule.
func TestCollectionRuleMatchesTableRule(t *testing.T) {
	for _, name := range []string{
		"events", "_private", "dockerAgentEvents", "events2024",
		"", "a.b", "my-events", "1events", "ñame", `x"y`,
		string(make([]byte, 128)), strings.Repeat("e", 128), strings.Repeat("e", 129),
	} {
		grantErr := domain.ValidateCollectionName(name)
		tableErr := ddl.ValidateIdentifier(name)
		assert.Equal(t, tableErr == nil, grantErr == nil, "name %q", name)
	}
}

func TestService_ShortTokenPrefixIsHashed(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, NewRegistry(), nil)

	require.NoError(t, svc.Grant(context.Background(), domain.GrantRequest{Token: "default", Collection: "events"}))

	require.Len(t, store.grants, 1)
	assert.Equal(t, "h:"+domain.HashToken("default")[:8], store.grants[0].KeyPrefix)
	assert.NotContains(t, store.grants[0].KeyPrefix, "default")
}

func TestService_StoreFailureLeavesRegistryUntouched(t *testing.T) {
	reg := NewRegistry()
	svc := NewService(&memStore{failErr: fmt.Errorf("disk full")}, reg, nil)

	err := svc.Grant(context.Background(), domain.GrantRequest{Token: "t", Collection: "c"})
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestService_LoadAndRevoke(t *testing.T) {
	store := &memStore{grants: []domain.CredentialGrant{
		{TokenHash: domain.HashToken("a"), Collection: "one"},
		{TokenHash: domain.HashToken("a"), Collection: "two"},
	}}
	reg := NewRegistry()
	svc := NewService(store, reg, nil)
	ctx := context.Background()

	require.NoError(t, svc.Load(ctx))
	got, ok := reg.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, []string{"one", "two"}, got)

	require.NoError(t, svc.Revoke(ctx, domain.GrantRequest{Token: "a", Collection: "one"}))
	got, _ = reg.Lookup("a")
	assert.Equal(t, []string{"two"}, got)
	assert.Len(t, store.grants, 1)
}

func TestService_Seed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
credentials:
  - token: default
    collections: [dockerAgentEvents]
  - token: ops
    collections: [metrics, logs]
`), 0o600))

	store := &memStore{}
	reg := NewRegistry()
	svc := NewService(store, reg, nil)

	n, err := svc.Seed(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, ok := reg.Lookup("ops")
	require.True(t, ok)
	assert.Equal(t, []string{"logs", "metrics"}, got)

	_, err = svc.Seed(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, store.grants, 3)
}

func TestService_SeedRejectsBadCollectionBeforeGranting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
credentials:
  - token: default
    collections: [dockerAgentEvents]
  - token: ops
    collections: [metrics, app.logs]
`), 0o600))

	store := &memStore{}
	svc := NewService(store, NewRegistry(), nil)

	n, err := svc.Seed(context.Background(), path)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, err.Error(), "credentials[1]")
	assert.Equal(t, 0, n)
	assert.Empty(t, store.grants)
}

func TestParseSeedFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing token", "credentials:\n  - collections: [a]\n", "token is required"},
		{"no collections", "credentials:\n  - token: t\n", "at least one collection"},
		{"bad yaml", "credentials: [", "parse seed file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeedFile([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
