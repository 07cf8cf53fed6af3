package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger 持有全部账户。账户集合在构造后不再增删。
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	order    []string
	now      func() time.Time
	newID    func() string
}

// Option 定义可选的 Ledger 配置。
type Option func(*Ledger)

// WithClock 替换生成交易时间戳所用的时钟。
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New 使用给定的种子账户创建 Ledger。
func New(seeds []Seed, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		accounts: make(map[string]*Account, len(seeds)),
		order:    make([]string, 0, len(seeds)),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	for _, seed := range seeds {
		id := strings.TrimSpace(seed.ID)
		if id == "" {
			return nil, fmt.Errorf("账户 ID 不能为空")
		}
		if _, exists := l.accounts[id]; exists {
			return nil, fmt.Errorf("账户 %s 重复", id)
		}
		if seed.Balance.IsNegative() {
			return nil, fmt.Errorf("账户 %s 的初始余额不能为负", id)
		}
		l.accounts[id] = &Account{
			ID:      id,
			Name:    seed.Name,
			Balance: seed.Balance,
			Opening: seed.Balance,
		}
		l.order = append(l.order, id)
	}
	return l, nil
}

// NewDefault 创建带默认示例账户的 Ledger。
func NewDefault(opts ...Option) *Ledger {
	l, err := New(DefaultSeeds(), opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// Get 返回账户快照，第二个返回值表示账户是否存在。
func (l *Ledger) Get(id string) (Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	account, ok := l.accounts[id]
	if !ok {
		return Account{}, false
	}
	return account.snapshot(), true
}

// BalanceOf 返回账户余额。
func (l *Ledger) BalanceOf(id string) (Summary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	account, ok := l.accounts[id]
	if !ok {
		return Summary{}, false
	}
	return Summary{ID: account.ID, Name: account.Name, Balance: account.Balance}, true
}

// ListAll 按创建顺序列出全部账户。
func (l *Ledger) ListAll() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Summary, 0, len(l.order))
	for _, id := range l.order {
		account := l.accounts[id]
		out = append(out, Summary{ID: account.ID, Name: account.Name, Balance: account.Balance})
	}
	return out
}

// Transactions 返回账户流水的副本。
func (l *Ledger) Transactions(id string) ([]Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	account, ok := l.accounts[id]
	if !ok {
		return nil, false
	}
	out := make([]Transaction, len(account.Transactions))
	copy(out, account.Transactions)
	return out, true
}
