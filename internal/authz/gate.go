package authz

import (
	"tendertrack/internal/stages"
	"tendertrack/models"
)

// Gate — единая точка проверки доступа к этапам вместо разрозненных
// проверок по экранам. Чистый предикат: никаких побочных эффектов.
type Gate struct {
	perms   Provider
	catalog *stages.Catalog
}

func NewGate(perms Provider, catalog *stages.Catalog) *Gate {
	return &Gate{perms: perms, catalog: catalog}
}

// CanEditStage: супер-админ > право edit_any > окно статуса + обычное право > отказ.
// Отсутствующее действующее лицо — всегда false, без ошибок.
func (g *Gate) CanEditStage(p *models.Principal, t *models.Tender, stageKey string) bool {
	if p == nil || t == nil {
		return false
	}
	def, ok := g.catalog.ByKey(stageKey)
	if !ok {
		return false
	}
	if g.perms.IsSuperAdmin(p) {
		return true
	}
	if g.perms.HasPermission(p, def.EditAnyPermission()) {
		return true
	}
	if statusInWindow(def.EditableStatuses, t.Status) && g.perms.HasPermission(p, def.EditPermission()) {
		return true
	}
	return false
}

// CanAccessStage: просмотр не ограничен окном статуса
func (g *Gate) CanAccessStage(p *models.Principal, t *models.Tender, stageKey string) bool {
	if p == nil || t == nil {
		return false
	}
	def, ok := g.catalog.ByKey(stageKey)
	if !ok {
		return false
	}
	if g.perms.IsSuperAdmin(p) {
		return true
	}
	return g.perms.HasPermission(p, def.ViewPermission()) ||
		g.perms.HasPermission(p, def.EditPermission()) ||
		g.perms.HasPermission(p, def.EditAnyPermission())
}

func statusInWindow(window []models.TenderStatus, status models.TenderStatus) bool {
	for _, s := range window {
		if s == status {
			return true
		}
	}
	return false
}
