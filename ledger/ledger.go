// Package ledger is the single mutation path for account balances. Every
// writer goes through Atomic + Lock* + Credit/Debit; nothing else in the
// codebase is allowed to read-modify-write a balance column.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus/models"
)

var (
	ErrNotFound          = errors.New("ledger: account not found")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)

// Atomic runs fn inside one database transaction. Any returned error or
// panic rolls back every write made under the locks fn acquired.
func Atomic(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(fn)
}

// lockForUpdate appends a row lock on dialects that support it. SQLite
// rejects FOR UPDATE syntax and serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockUser loads a user by code under an exclusive row lock.
func LockUser(tx *gorm.DB, userCode string) (*models.User, error) {
	var user models.User
	if err := lockForUpdate(tx).Where("user_code = ?", userCode).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// LockAgentUser loads a user by code under an exclusive row lock, scoped to
// the owning agent. A user of another agent is indistinguishable from a
// missing one.
func LockAgentUser(tx *gorm.DB, userCode, agentCode string) (*models.User, error) {
	var user models.User
	if err := lockForUpdate(tx).Where("user_code = ? AND agent_code = ?",
		userCode, agentCode).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// LockAgent loads an agent by code under an exclusive row lock.
func LockAgent(tx *gorm.DB, agentCode string) (*models.Agent, error) {
	var agent models.Agent
	if err := lockForUpdate(tx).Where("agent_code = ?", agentCode).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &agent, nil
}

// LockDownline loads an agent by code under an exclusive row lock, scoped to
// the referral that created it. Agents outside the caller's downline are
// indistinguishable from missing ones.
func LockDownline(tx *gorm.DB, agentCode, referral string) (*models.Agent, error) {
	var agent models.Agent
	if err := lockForUpdate(tx).Where("agent_code = ? AND referral = ?",
		agentCode, referral).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &agent, nil
}

// Round normalizes a monetary value to 2 decimal places, half up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CreditUser applies a non-negative delta to a locked user row and returns
// the balance before mutation.
func CreditUser(tx *gorm.DB, user *models.User, amount decimal.Decimal) (decimal.Decimal, error) {
	before := user.Balance
	user.Balance = Round(user.Balance.Add(Round(amount)))
	if err := tx.Model(user).Update("balance", user.Balance).Error; err != nil {
		return before, err
	}
	return before, nil
}

// DebitUser applies a debit to a locked user row. The check is strictly
// balance - amount < 0: draining to exactly zero is allowed.
func DebitUser(tx *gorm.DB, user *models.User, amount decimal.Decimal) (decimal.Decimal, error) {
	before := user.Balance
	amount = Round(amount)
	if user.Balance.Sub(amount).IsNegative() {
		return before, ErrInsufficientFunds
	}
	user.Balance = Round(user.Balance.Sub(amount))
	if err := tx.Model(user).Update("balance", user.Balance).Error; err != nil {
		return before, err
	}
	return before, nil
}

// CreditAgent mirrors CreditUser for agent rows.
func CreditAgent(tx *gorm.DB, agent *models.Agent, amount decimal.Decimal) (decimal.Decimal, error) {
	before := agent.Balance
	agent.Balance = Round(agent.Balance.Add(Round(amount)))
	if err := tx.Model(agent).Update("balance", agent.Balance).Error; err != nil {
		return before, err
	}
	return before, nil
}

// DebitAgent mirrors DebitUser for agent rows.
func DebitAgent(tx *gorm.DB, agent *models.Agent, amount decimal.Decimal) (decimal.Decimal, error) {
	before := agent.Balance
	amount = Round(amount)
	if agent.Balance.Sub(amount).IsNegative() {
		return before, ErrInsufficientFunds
	}
	agent.Balance = Round(agent.Balance.Sub(amount))
	if err := tx.Model(agent).Update("balance", agent.Balance).Error; err != nil {
		return before, err
	}
	return before, nil
}

// CreditDownline grows the agent's downline shadow balance. Unlike Balance
// it has no debit counterpart.
func CreditDownline(tx *gorm.DB, agent *models.Agent, amount decimal.Decimal) error {
	agent.DBalance = Round(agent.DBalance.Add(Round(amount)))
	return tx.Model(agent).Update("d_balance", agent.DBalance).Error
}
