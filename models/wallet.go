package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Game transaction status flow: Running -> Settled | Refunded | Adjusted,
// and Running -> Ended when the provider closes a round without a result.
const (
	StatusRunning  = "Running"
	StatusSettled  = "Settled"
	StatusRefunded = "Refunded"
	StatusAdjusted = "Adjusted"
	StatusEnded    = "Ended"
)

// GameTransaction is the internal per-round audit row. The provider
// Reference doubles as the idempotency key for bet/result/refund replays.
type GameTransaction struct {
	gorm.Model

	UserID    uint   `gorm:"index"`
	UserCode  string `gorm:"size:32;index"`
	AgentCode string `gorm:"size:32;index"`

	GameID    string `gorm:"size:64;index"`
	RoundID   string `gorm:"size:64;index"`
	Reference string `gorm:"size:64;uniqueIndex"`

	BetAmount   decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	WinAmount   decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	BonusAmount decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	BonusCode   string          `gorm:"size:64;index"`
	Currency    string          `gorm:"size:8"`

	BalanceBefore decimal.Decimal `gorm:"type:numeric(18,2)"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(18,2)"`

	Status string `gorm:"size:16;index"`
	Note   string `gorm:"size:255"`
}

// WalletTransaction is the provider-facing ledger row, one per accepted
// callback. Reference is the caller-supplied idempotency key.
type WalletTransaction struct {
	gorm.Model

	UserCode string `gorm:"size:32;index"`
	Currency string `gorm:"size:8"`

	Cash         decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	Amount       decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	TotalBalance decimal.Decimal `gorm:"type:numeric(18,2);default:0"`

	GameID    string `gorm:"size:64;index"`
	RoundID   string `gorm:"size:64;index"`
	JackpotID string `gorm:"size:64;index"`

	Reference     string `gorm:"size:64;uniqueIndex"`
	TransactionID string `gorm:"size:64;index"`

	CampaignID        string          `gorm:"size:100"`
	CampaignType      string          `gorm:"size:16"`
	PromoWinAmount    decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	PromoWinReference string          `gorm:"size:100"`

	RoundDetails datatypes.JSON `gorm:"type:jsonb"`
	IPAddress    string         `gorm:"size:64"`

	ErrorCode   int32  `gorm:"column:error"`
	Description string `gorm:"size:100"`
}

// Adjustment keeps its own reference space: the provider issues adjustment
// references that may collide with round references, so replays are detected
// against this table only.
type Adjustment struct {
	gorm.Model

	UserCode  string `gorm:"size:32;index"`
	Reference string `gorm:"size:64;uniqueIndex"`

	Amount        decimal.Decimal `gorm:"type:numeric(18,2)"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(18,2)"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(18,2)"`

	Note string `gorm:"size:255"`
}
