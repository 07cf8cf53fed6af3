package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	xerrors "BankAgent/internal/errors"
)

// 转账校验失败的原因码。它们以值的形式出现在 Result 中，不作为 error 返回。
const (
	CodeSourceNotFound      xerrors.Code = "LEDGER_SOURCE_NOT_FOUND"
	CodeDestinationNotFound xerrors.Code = "LEDGER_DESTINATION_NOT_FOUND"
	CodeSelfTransfer        xerrors.Code = "LEDGER_SELF_TRANSFER"
	CodeNonPositiveAmount   xerrors.Code = "LEDGER_NON_POSITIVE_AMOUNT"
	CodeInsufficientFunds   xerrors.Code = "LEDGER_INSUFFICIENT_FUNDS"
)

func init() {
	for code, message := range map[xerrors.Code]string{
		CodeSourceNotFound:      "source account not found",
		CodeDestinationNotFound: "destination account not found",
		CodeSelfTransfer:        "cannot transfer to self",
		CodeNonPositiveAmount:   "amount must be positive",
		CodeInsufficientFunds:   "insufficient funds",
	} {
		xerrors.Register(code, xerrors.Attributes{
			Message:   message,
			Severity:  xerrors.SeverityInfo,
			Retryable: false,
		})
	}
}

// Result 描述一次转账的结果。FromBalance 与 ToBalance 仅在 Success 时有效。
type Result struct {
	Success     bool            `json:"success"`
	Reason      xerrors.Code    `json:"reason,omitempty"`
	Message     string          `json:"message"`
	FromBalance decimal.Decimal `json:"from_balance"`
	ToBalance   decimal.Decimal `json:"to_balance"`
	Debit       *Transaction    `json:"debit,omitempty"`
	Credit      *Transaction    `json:"credit,omitempty"`
}

func failed(reason xerrors.Code, format string, args ...any) Result {
	return Result{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Transfer 在写锁内完成校验、两侧余额变更与两条流水的追加。
// 任一校验失败时两个账户均保持不变。
func (l *Ledger) Transfer(fromID, toID string, amount decimal.Decimal) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	from, ok := l.accounts[fromID]
	if !ok {
		return failed(CodeSourceNotFound, "源账户 %s 不存在", fromID)
	}
	to, ok := l.accounts[toID]
	if !ok {
		return failed(CodeDestinationNotFound, "目标账户 %s 不存在", toID)
	}
	if fromID == toID {
		return failed(CodeSelfTransfer, "不能向自己转账")
	}
	if !amount.IsPositive() {
		return failed(CodeNonPositiveAmount, "转账金额必须大于0")
	}
	if from.Balance.LessThan(amount) {
		return failed(CodeInsufficientFunds, "余额不足，当前余额: %s", from.Balance.String())
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)

	now := l.now()
	debit := Transaction{
		ID:           l.newID(),
		Timestamp:    now,
		Kind:         KindDebit,
		Amount:       amount,
		Counterparty: toID,
		BalanceAfter: from.Balance,
	}
	credit := Transaction{
		ID:           l.newID(),
		Timestamp:    now,
		Kind:         KindCredit,
		Amount:       amount,
		Counterparty: fromID,
		BalanceAfter: to.Balance,
	}
	from.Transactions = append(from.Transactions, debit)
	to.Transactions = append(to.Transactions, credit)

	return Result{
		Success: true,
		Message: fmt.Sprintf("转账成功！从 %s(%s) 向 %s(%s) 转账 %s 元",
			from.Name, fromID, to.Name, toID, amount.String()),
		FromBalance: from.Balance,
		ToBalance:   to.Balance,
		Debit:       &debit,
		Credit:      &credit,
	}
}
