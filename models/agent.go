package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

type Agent struct {
	gorm.Model

	AgentCode    string `gorm:"uniqueIndex;size:32" json:"agent_code"`
	Username     string `gorm:"uniqueIndex;size:32" json:"username"`
	PasswordHash string `gorm:"size:128" json:"-"`
	SecretKey    string `gorm:"size:128" json:"-"`
	Role         string `gorm:"size:16;default:agent" json:"role"`

	// Balance is the agent's own spendable funds. DBalance is the downline
	// shadow balance: it only grows, by the starting balance of every account
	// this agent funds, and is never spendable.
	Balance  decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"balance"`
	DBalance decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"dbalance"`

	// Referral is the agent code of the parent that created this agent.
	// Back-reference only, not ownership.
	Referral string `gorm:"index;size:32" json:"referral"`

	Currency string `gorm:"size:8" json:"currency"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	Users []User `gorm:"foreignKey:AgentCode;references:AgentCode"`
}

func (a *Agent) IsAdmin() bool {
	return a.Role == RoleAdmin
}
