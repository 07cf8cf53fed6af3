package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind 区分交易记录的方向。
type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

// Transaction 是账户上不可变的一条流水。
type Transaction struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Kind         Kind            `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty string          `json:"counterparty,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// Signed 返回带符号的金额，入账为正、出账为负。
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == KindDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Account 是账户的快照。Ledger 对外只返回副本。
type Account struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Balance      decimal.Decimal `json:"balance"`
	Opening      decimal.Decimal `json:"opening_balance"`
	Transactions []Transaction   `json:"transactions"`
}

// Reconciles 检查余额是否等于期初余额加上全部流水的带符号金额。
func (a Account) Reconciles() bool {
	expected := a.Opening
	for _, tx := range a.Transactions {
		expected = expected.Add(tx.Signed())
	}
	return expected.Equal(a.Balance)
}

// Summary 是账户列表中的一行。
type Summary struct {
	ID      string          `json:"account_id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// Seed 描述启动时创建的账户。
type Seed struct {
	ID      string          `json:"id" yaml:"id"`
	Name    string          `json:"name" yaml:"name"`
	Balance decimal.Decimal `json:"balance" yaml:"balance"`
}

// DefaultSeeds 返回默认的三个示例账户。
func DefaultSeeds() []Seed {
	return []Seed{
		{ID: "1001", Name: "张三", Balance: decimal.NewFromInt(10000)},
		{ID: "1002", Name: "李四", Balance: decimal.NewFromInt(5000)},
		{ID: "1003", Name: "王五", Balance: decimal.NewFromInt(8000)},
	}
}

func (a *Account) snapshot() Account {
	clone := *a
	clone.Transactions = make([]Transaction, len(a.Transactions))
	copy(clone.Transactions, a.Transactions)
	return clone
}
