package stages

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"tendertrack/models"
)

// Описание этапа из справочника; порядок и обязательность фиксированы глобально
type StageDef struct {
	Key              string                `yaml:"key"`
	Order            int                   `yaml:"order"`
	Label            string                `yaml:"label"`
	Mandatory        bool                  `yaml:"mandatory"`
	DirectSaleSkip   bool                  `yaml:"direct_sale_skip"`
	EditableStatuses []models.TenderStatus `yaml:"editable_statuses"`
}

// Коды прав выводятся из ключа этапа
func (d StageDef) ViewPermission() string    { return "tenders." + d.Key + ".view" }
func (d StageDef) EditPermission() string    { return "tenders." + d.Key + ".edit" }
func (d StageDef) EditAnyPermission() string { return "tenders." + d.Key + ".edit_any" }

// Справочник этапов, загружается один раз при старте
type Catalog struct {
	defs  []StageDef
	byKey map[string]StageDef
}

func New(defs []StageDef) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("stage catalog is empty")
	}
	sorted := make([]StageDef, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	byKey := make(map[string]StageDef, len(sorted))
	for i, d := range sorted {
		if d.Key == "" {
			return nil, fmt.Errorf("stage #%d has empty key", i+1)
		}
		if _, dup := byKey[d.Key]; dup {
			return nil, fmt.Errorf("duplicate stage key %q", d.Key)
		}
		if i > 0 && sorted[i-1].Order == d.Order {
			return nil, fmt.Errorf("duplicate stage order %d (%s)", d.Order, d.Key)
		}
		byKey[d.Key] = d
	}
	return &Catalog{defs: sorted, byKey: byKey}, nil
}

type catalogFile struct {
	Stages []StageDef `yaml:"stages"`
}

// Load читает альтернативный справочник этапов из YAML-файла
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse stage catalog: %w", err)
	}
	return New(f.Stages)
}

func (c *Catalog) ByKey(key string) (StageDef, bool) {
	d, ok := c.byKey[key]
	return d, ok
}

func (c *Catalog) Defs() []StageDef { return c.defs }

func (c *Catalog) First() StageDef { return c.defs[0] }

// Terminal — ключ, на который встает current_stage после прохождения всех этапов
func (c *Catalog) Terminal() StageDef { return c.defs[len(c.defs)-1] }

func (c *Catalog) Total() int { return len(c.defs) }

// Permissions генерирует плоский справочник прав по этапам
func (c *Catalog) Permissions() []models.Permission {
	perms := make([]models.Permission, 0, len(c.defs)*3)
	for _, d := range c.defs {
		for _, action := range []string{"view", "edit", "edit_any"} {
			perms = append(perms, models.Permission{
				Code:     "tenders." + d.Key + "." + action,
				Module:   "tenders",
				Resource: d.Key,
				Action:   action,
			})
		}
	}
	return perms
}

// Default — встроенный справочник жизненного цикла госзакупки
func Default() *Catalog {
	c, err := New([]StageDef{
		{Key: "discovery", Order: 1, Label: "Tender discovery", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusNew}},
		{Key: "initial_review", Order: 2, Label: "Initial review",
			EditableStatuses: []models.TenderStatus{models.StatusNew, models.StatusStudying}},
		{Key: "purchase_approval", Order: 3, Label: "Documents purchase approval", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusStudying}},
		{Key: "documents_purchase", Order: 4, Label: "Documents purchase", DirectSaleSkip: true,
			EditableStatuses: []models.TenderStatus{models.StatusStudying}},
		{Key: "site_visit", Order: 5, Label: "Site visit",
			EditableStatuses: []models.TenderStatus{models.StatusStudying}},
		{Key: "pre_bid_meeting", Order: 6, Label: "Pre-bid meeting",
			EditableStatuses: []models.TenderStatus{models.StatusStudying}},
		{Key: "questions", Order: 7, Label: "Clarification questions",
			EditableStatuses: []models.TenderStatus{models.StatusStudying}},
		{Key: "evaluation", Order: 8, Label: "Technical evaluation", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusStudying}},
		{Key: "go_no_go_decision", Order: 9, Label: "Go / no-go decision", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusGoNoGo}},
		{Key: "technical_study", Order: 10, Label: "Technical study",
			EditableStatuses: []models.TenderStatus{models.StatusPricing}},
		{Key: "pricing", Order: 11, Label: "Pricing", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusPricing}},
		{Key: "bond_preparation", Order: 12, Label: "Bid bond preparation", DirectSaleSkip: true,
			EditableStatuses: []models.TenderStatus{models.StatusPricing, models.StatusReady}},
		{Key: "final_review", Order: 13, Label: "Final review", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusReady}},
		{Key: "submission", Order: 14, Label: "Bid submission", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusReady}},
		{Key: "financial_opening", Order: 15, Label: "Financial opening", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusSubmitted, models.StatusOpening}},
		{Key: "award_waiting", Order: 16, Label: "Award waiting", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusOpening}},
		{Key: "bid_bond_withdrawal", Order: 17, Label: "Bid bond withdrawal", DirectSaleSkip: true,
			EditableStatuses: []models.TenderStatus{models.StatusWon, models.StatusLost}},
		{Key: "project_conversion", Order: 18, Label: "Project conversion",
			EditableStatuses: []models.TenderStatus{models.StatusWon}},
		{Key: "archived", Order: 19, Label: "Archive", Mandatory: true,
			EditableStatuses: []models.TenderStatus{models.StatusWon, models.StatusLost, models.StatusCancelled}},
	})
	if err != nil {
		// встроенный справочник проверяется тестами
		panic(err)
	}
	return c
}
