package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model

	UserCode     string `gorm:"uniqueIndex;size:32" json:"user_code"`
	AgentCode    string `gorm:"index;size:32" json:"agent_code"`
	PasswordHash string `gorm:"size:128" json:"-"`

	Balance  decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"balance"`
	Country  string          `gorm:"size:64" json:"country"`
	Currency string          `gorm:"size:8" json:"currency"`
	IsActive bool            `gorm:"default:true" json:"is_active"`

	GameTransactions []GameTransaction `gorm:"foreignKey:UserID"`
}
