package authz

import "tendertrack/models"

// Provider отвечает на вопросы о правах действующего лица
type Provider interface {
	HasPermission(p *models.Principal, code string) bool
	IsSuperAdmin(p *models.Principal) bool
}

// Catalog — справочник ролей и их прав, загружается при старте из БД
type Catalog struct {
	roles map[int]models.Role
	perms map[int]map[string]struct{}
}

func NewCatalog(roles []models.Role, rolePerms map[int][]string) *Catalog {
	c := &Catalog{
		roles: make(map[int]models.Role, len(roles)),
		perms: make(map[int]map[string]struct{}, len(roles)),
	}
	for _, r := range roles {
		c.roles[r.ID] = r
	}
	for roleID, codes := range rolePerms {
		set := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			set[code] = struct{}{}
		}
		c.perms[roleID] = set
	}
	return c
}

func (c *Catalog) HasPermission(p *models.Principal, code string) bool {
	if p == nil {
		return false
	}
	for _, roleID := range p.RoleIDs {
		if _, ok := c.perms[roleID][code]; ok {
			return true
		}
	}
	return false
}

func (c *Catalog) IsSuperAdmin(p *models.Principal) bool {
	return p != nil && p.SuperAdmin
}

// RoleLevel — уровень роли для ранжирования при эскалации; 0 если роль неизвестна
func (c *Catalog) RoleLevel(roleID int) int {
	return c.roles[roleID].Level
}
