package authz_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tendertrack/internal/authz"
	"tendertrack/internal/stages"
	"tendertrack/models"
)

func catalogWithPerms(rolePerms map[int][]string) *authz.Catalog {
	roles := []models.Role{
		{ID: 1, Name: "tender_officer", Level: 1},
		{ID: 2, Name: "tender_manager", Level: 2},
		{ID: 4, Name: "tenders_director", Level: 4},
	}
	return authz.NewCatalog(roles, rolePerms)
}

func TestSuperAdminAlwaysAllowed(t *testing.T) {
	gate := authz.NewGate(catalogWithPerms(nil), stages.Default())
	admin := &models.Principal{ID: 1, SuperAdmin: true}
	// терминальный статус и отсутствие прав не мешают супер-админу
	tender := &models.Tender{ID: 1, Status: models.StatusWon}

	require.True(t, gate.CanEditStage(admin, tender, "pricing"))
	require.True(t, gate.CanAccessStage(admin, tender, "pricing"))
}

func TestEditAnyBypassesStatusWindow(t *testing.T) {
	gate := authz.NewGate(catalogWithPerms(map[int][]string{
		4: {"tenders.pricing.edit_any"},
	}), stages.Default())
	director := &models.Principal{ID: 2, RoleIDs: []int{4}}

	// окно этапа pricing — только статус pricing, но edit_any его игнорирует
	tender := &models.Tender{ID: 1, Status: models.StatusSubmitted}
	require.True(t, gate.CanEditStage(director, tender, "pricing"))
}

func TestOrdinaryEditorConfinedToWindow(t *testing.T) {
	gate := authz.NewGate(catalogWithPerms(map[int][]string{
		1: {"tenders.pricing.edit"},
	}), stages.Default())
	officer := &models.Principal{ID: 3, RoleIDs: []int{1}}

	inWindow := &models.Tender{ID: 1, Status: models.StatusPricing}
	outOfWindow := &models.Tender{ID: 1, Status: models.StatusSubmitted}

	require.True(t, gate.CanEditStage(officer, inWindow, "pricing"))
	require.False(t, gate.CanEditStage(officer, outOfWindow, "pricing"))
}

func TestNoPermissionDenied(t *testing.T) {
	gate := authz.NewGate(catalogWithPerms(map[int][]string{
		1: {"tenders.discovery.edit"},
	}), stages.Default())
	officer := &models.Principal{ID: 3, RoleIDs: []int{1}}
	tender := &models.Tender{ID: 1, Status: models.StatusPricing}

	require.False(t, gate.CanEditStage(officer, tender, "pricing"))
	require.False(t, gate.CanAccessStage(officer, tender, "pricing"))
}

func TestViewNotLimitedByWindow(t *testing.T) {
	gate := authz.NewGate(catalogWithPerms(map[int][]string{
		1: {"tenders.pricing.view"},
	}), stages.Default())
	officer := &models.Principal{ID: 3, RoleIDs: []int{1}}
	tender := &models.Tender{ID: 1, Status: models.StatusWon}

	require.True(t, gate.CanAccessStage(officer, tender, "pricing"))
	require.False(t, gate.CanEditStage(officer, tender, "pricing"))
}

func TestNilPrincipalOrTenderDenied(t *testing.T) {
	gate := authz.NewGate(catalogWithPerms(nil), stages.Default())
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	admin := &models.Principal{ID: 1, SuperAdmin: true}

	require.False(t, gate.CanEditStage(nil, tender, "discovery"))
	require.False(t, gate.CanEditStage(admin, nil, "discovery"))
	require.False(t, gate.CanAccessStage(nil, tender, "discovery"))
}

func TestUnknownStageDenied(t *testing.T) {
	gate := authz.NewGate(catalogWithPerms(nil), stages.Default())
	admin := &models.Principal{ID: 1, SuperAdmin: true}
	tender := &models.Tender{ID: 1, Status: models.StatusNew}

	require.False(t, gate.CanEditStage(admin, tender, "no_such_stage"))
}

func TestRoleLevel(t *testing.T) {
	c := catalogWithPerms(nil)
	require.Equal(t, 4, c.RoleLevel(4))
	require.Equal(t, 0, c.RoleLevel(99))
}
