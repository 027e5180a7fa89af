package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TrxDeposit  = "Deposit"
	TrxWithdraw = "Withdraw"
)

// TransferTransaction is the append-only audit row written by every
// registration, distribution and withdrawal. Exactly one of AgentCode or
// UserCode names the recipient. Rows are never updated after insert.
type TransferTransaction struct {
	gorm.Model

	SenderCode string `gorm:"index;size:32"`
	AgentCode  string `gorm:"index;size:32"`
	UserCode   string `gorm:"index;size:32"`

	Amount         decimal.Decimal `gorm:"type:numeric(18,2)"`
	BeforeAmount   decimal.Decimal `gorm:"type:numeric(18,2)"`
	DepositAmount  decimal.Decimal `gorm:"type:numeric(18,2)"`
	WithdrawAmount decimal.Decimal `gorm:"type:numeric(18,2)"`

	TrxType   string `gorm:"size:16"`
	Currency  string `gorm:"size:8"`
	Note      string `gorm:"size:255"`
	RefID     string `gorm:"size:64;index"`
	IPAddress string `gorm:"size:64"`
}
