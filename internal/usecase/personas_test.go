package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"lifestory-agent/internal/domain"
)

func newPersonaHarness(t *testing.T) (*PersonaService, *fakeCatalog, *fakeSessions) {
	t.Helper()
	cat := resolverFixture()
	sess := newFakeSessions()
	svc, err := NewPersonaService(cat, sess, nil)
	require.NoError(t, err)
	return svc, cat, sess
}

func TestPersonaCreate(t *testing.T) {
	svc, cat, _ := newPersonaHarness(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, PersonaInput{Name: "  Storyteller ", StyleIDs: []string{"style-warm"}})
	require.NoError(t, err)
	require.Equal(t, "Storyteller", p.Name)
	require.Equal(t, owner.ID, p.OwnerID)
	require.False(t, p.IsSystem)
	require.Contains(t, cat.personas, p.ID)

	_, err = svc.Create(ctx, owner, PersonaInput{Name: " "})
	requireCode(t, err, ErrorInvalidInput)

	_, err = svc.Create(ctx, owner, PersonaInput{Name: "House 2", IsSystem: true})
	requireCode(t, err, ErrorForbidden)

	sys, err := svc.Create(ctx, admin, PersonaInput{Name: "House 2", IsSystem: true})
	require.NoError(t, err)
	require.True(t, sys.IsSystem)
	require.Empty(t, sys.OwnerID)
}

func TestPersonaUpdate_Authorization(t *testing.T) {
	svc, cat, _ := newPersonaHarness(t)
	ctx := context.Background()

	updated, err := svc.Update(ctx, owner, "mine-other", PersonaInput{Name: "Renamed", IsSystem: true})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.False(t, updated.IsSystem)
	require.Equal(t, owner.ID, cat.personas["mine-other"].OwnerID)

	_, err = svc.Update(ctx, owner, "theirs", PersonaInput{Name: "Stolen"})
	requireCode(t, err, ErrorForbidden)

	_, err = svc.Update(ctx, admin, "theirs", PersonaInput{Name: "Admin edit"})
	requireCode(t, err, ErrorForbidden)

	_, err = svc.Update(ctx, owner, "sys-other", PersonaInput{Name: "Mine now"})
	requireCode(t, err, ErrorForbidden)

	_, err = svc.Update(ctx, admin, "sys-other", PersonaInput{Name: "Formal 2"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, owner, "missing", PersonaInput{Name: "x"})
	requireCode(t, err, ErrorNotFound)
}

func TestPersonaDelete(t *testing.T) {
	svc, cat, _ := newPersonaHarness(t)
	ctx := context.Background()

	requireCode(t, svc.Delete(ctx, other, "mine-other"), ErrorForbidden)
	require.NoError(t, svc.Delete(ctx, owner, "mine-other"))
	require.Equal(t, []string{"mine-other"}, cat.deleted)
	requireCode(t, svc.Delete(ctx, owner, "mine-other"), ErrorNotFound)
}

func TestPersonaSetDefault(t *testing.T) {
	svc, cat, _ := newPersonaHarness(t)
	ctx := context.Background()

	require.NoError(t, svc.SetDefault(ctx, owner, "mine-other"))
	require.True(t, cat.personas["mine-other"].IsDefault)
	require.False(t, cat.personas["mine-default"].IsDefault)
	require.True(t, cat.personas["sys-default"].IsDefault)

	requireCode(t, svc.SetDefault(ctx, owner, "sys-other"), ErrorForbidden)
	require.NoError(t, svc.SetDefault(ctx, admin, "sys-other"))
	require.False(t, cat.personas["sys-default"].IsDefault)
}

func TestPersonaList(t *testing.T) {
	svc, _, _ := newPersonaHarness(t)
	list, err := svc.List(context.Background(), owner)
	require.NoError(t, err)
	ids := make(map[string]bool)
	for _, p := range list {
		ids[p.ID] = true
	}
	require.True(t, ids["sys-default"])
	require.True(t, ids["mine-other"])
	require.False(t, ids["theirs"])

	_, err = svc.List(context.Background(), domain.Account{})
	requireCode(t, err, ErrorInvalidInput)
}

func TestPersonaSelect(t *testing.T) {
	svc, _, sess := newPersonaHarness(t)
	ctx := context.Background()

	require.NoError(t, svc.Select(ctx, owner, "sid", "c1", "mine-other"))
	require.Equal(t, "mine-other", sess.personas["sid/c1"])

	require.NoError(t, svc.Select(ctx, owner, "sid", "c1", "sys-other"))
	require.Equal(t, "sys-other", sess.personas["sid/c1"])

	requireCode(t, svc.Select(ctx, owner, "sid", "c1", "theirs"), ErrorForbidden)
	requireCode(t, svc.Select(ctx, owner, "sid", "c1", "gone"), ErrorNotFound)
	requireCode(t, svc.Select(ctx, owner, "", "c1", "mine-other"), ErrorInvalidInput)

	require.NoError(t, svc.Select(ctx, owner, "sid", "c1", ""))
	require.Equal(t, "", sess.personas["sid/c1"])

	sess.err = errors.New("connection refused")
	requireCode(t, svc.Select(ctx, owner, "sid", "c1", "mine-other"), ErrorInternal)
}

func TestPersonaSetDebug(t *testing.T) {
	svc, _, sess := newPersonaHarness(t)
	ctx := context.Background()

	requireCode(t, svc.SetDebug(ctx, owner, "sid", "c1", true), ErrorForbidden)
	require.NoError(t, svc.SetDebug(ctx, admin, "sid", "c1", true))
	require.True(t, sess.debug["sid/c1"])
	requireCode(t, svc.SetDebug(ctx, admin, "", "c1", true), ErrorInvalidInput)
}

func TestSyncStyles(t *testing.T) {
	svc, cat, _ := newPersonaHarness(t)
	ctx := context.Background()
	styles := []domain.CommStyle{{Key: "warm", DisplayName: "Warm", Visible: true, Directive: "Be warm."}}

	_, err := svc.SyncStyles(ctx, owner, styles)
	requireCode(t, err, ErrorForbidden)
	require.Empty(t, cat.upserted)

	n, err := svc.SyncStyles(ctx, admin, styles)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, styles, cat.upserted)

	_, err = svc.SyncStyles(ctx, admin, []domain.CommStyle{{Key: ""}})
	requireCode(t, err, ErrorInvalidInput)
}

func TestNewPersonaService_Validation(t *testing.T) {
	_, err := NewPersonaService(nil, newFakeSessions(), nil)
	require.Error(t, err)
	_, err = NewPersonaService(newFakeCatalog(), nil, nil)
	require.Error(t, err)
}
