package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
)

// MemberBalance is one member's position across a group's open loans.
type MemberBalance struct {
	UserID     string          `json:"user_id"`
	NetBalance decimal.Decimal `json:"net_balance"` // Positive = is owed money, negative = owes money
	TotalLent  decimal.Decimal `json:"total_lent"`  // Outstanding amount others owe this member
	TotalOwed  decimal.Decimal `json:"total_owed"`  // Outstanding amount this member owes
}

// DebtEdge represents a simplified debt from one member to another.
type DebtEdge struct {
	From   string          `json:"from"` // Member who owes
	To     string          `json:"to"`   // Member who is owed
	Amount decimal.Decimal `json:"amount"`
}

// GroupBalances nets the outstanding balances of loans between registered
// members and simplifies them into the fewest debts using greedy matching
// of the largest debtor with the largest creditor.
//
// Loans to external debtors, repaid loans and loans still awaiting
// confirmation are ignored.
func GroupBalances(loans []*models.Loan) ([]MemberBalance, []DebtEdge) {
	balances := make(map[string]*MemberBalance)
	get := func(id string) *MemberBalance {
		b, ok := balances[id]
		if !ok {
			b = &MemberBalance{UserID: id, NetBalance: decimal.Zero, TotalLent: decimal.Zero, TotalOwed: decimal.Zero}
			balances[id] = b
		}
		return b
	}

	for _, loan := range loans {
		if loan.Status != models.LoanOutstanding || !loan.HasRegisteredDebtor() {
			continue
		}
		outstanding := loan.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}
		get(loan.CreditorID).TotalLent = get(loan.CreditorID).TotalLent.Add(outstanding)
		get(loan.DebtorID).TotalOwed = get(loan.DebtorID).TotalOwed.Add(outstanding)
	}

	result := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.TotalLent.Sub(b.TotalOwed)
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })

	// Creditors (owed money) and debtors (owe money), largest first
	var creditors, debtors []MemberBalance
	for _, b := range result {
		if b.NetBalance.IsPositive() {
			creditors = append(creditors, b)
		} else if b.NetBalance.IsNegative() {
			debtors = append(debtors, b)
		}
	}
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].NetBalance.GreaterThan(creditors[j].NetBalance) })
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].NetBalance.LessThan(debtors[j].NetBalance) })

	remainingDebt := make([]decimal.Decimal, len(debtors))
	for i, d := range debtors {
		remainingDebt[i] = d.NetBalance.Neg()
	}
	remainingCredit := make([]decimal.Decimal, len(creditors))
	for i, c := range creditors {
		remainingCredit[i] = c.NetBalance
	}

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(remainingDebt[i], remainingCredit[j])
		if amount.GreaterThanOrEqual(Tolerance) {
			edges = append(edges, DebtEdge{From: debtors[i].UserID, To: creditors[j].UserID, Amount: amount})
		}
		remainingDebt[i] = remainingDebt[i].Sub(amount)
		remainingCredit[j] = remainingCredit[j].Sub(amount)

		if remainingDebt[i].LessThan(Tolerance) {
			i++
		}
		if remainingCredit[j].LessThan(Tolerance) {
			j++
		}
	}

	return result, edges
}
