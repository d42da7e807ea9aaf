package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tinkerly/tinkerly-backend/pkg/enums"
)

// Project is a user's scoped project, priced by an analysis.
type Project struct {
	ID          uuid.UUID           `gorm:"column:id;primaryKey" json:"id"`
	UserID      string              `gorm:"column:user_id;not null;index" json:"userId"`
	Title       string              `gorm:"column:title;not null" json:"title"`
	Description string              `gorm:"column:description;not null" json:"description"`
	Status      enums.ProjectStatus `gorm:"column:status;not null;default:'draft'" json:"status"`
	TotalCost   decimal.NullDecimal `gorm:"column:total_cost;type:numeric(12,2)" json:"totalCost"`
	Timeline    *string             `gorm:"column:timeline" json:"timeline"`
	Complexity  *int                `gorm:"column:complexity" json:"complexity"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
