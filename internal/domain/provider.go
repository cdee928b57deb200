package domain

import (
	"fmt"
	"strings"
	"time"
)

// Provider is an external party owed payment, the recipient of the
// aggregated notification.
type Provider struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	Email     string `gorm:"type:varchar(255);not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Provider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: provider name is required", ErrValidation)
	}
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("%w: provider email is required", ErrValidation)
	}
	return nil
}
