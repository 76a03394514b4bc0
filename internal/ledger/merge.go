// Package ledger holds the pure wallet rules: the merged transaction view
// and validation of cash-in and withdrawal amounts.
package ledger

import (
	"fmt"
	"sort"

	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// Merge folds withdrawal requests into the transaction log as synthetic
// withdrawal entries and returns the combined view, newest first.
//
// A request is skipped when a transaction already references it. Legacy
// withdrawal transactions carry no request reference; those are matched by
// equal amount instead, each at most once. The fallback is approximate.
func Merge(txs []models.Transaction, requests []models.WithdrawalRequest) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs)+len(requests))
	out = append(out, txs...)

	referenced := make(map[utils.SixID]struct{})
	var legacy []int
	for i, tx := range txs {
		if tx.Type != models.TransactionWithdrawal {
			continue
		}
		if tx.WithdrawalRequestID.IsZero() {
			legacy = append(legacy, i)
			continue
		}
		referenced[tx.WithdrawalRequestID] = struct{}{}
	}

	used := make(map[int]bool, len(legacy))
	for _, req := range requests {
		if _, ok := referenced[req.ID]; ok {
			continue
		}
		if matchLegacy(txs, legacy, used, req.Amount) {
			continue
		}
		out = append(out, Synthetic(req))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func matchLegacy(txs []models.Transaction, legacy []int, used map[int]bool, amount float64) bool {
	for _, i := range legacy {
		if !used[i] && txs[i].Amount == amount {
			used[i] = true
			return true
		}
	}
	return false
}

// Synthetic renders a withdrawal request as a ledger entry.
func Synthetic(req models.WithdrawalRequest) models.Transaction {
	return models.Transaction{
		ID:                  req.ID,
		Type:                models.TransactionWithdrawal,
		Amount:              req.Amount,
		Status:              StatusFor(req.Status),
		Description:         fmt.Sprintf("Withdrawal to %s", req.PaypalEmail),
		WithdrawalRequestID: req.ID,
		CreatedAt:           req.RequestedAt,
	}
}

// StatusFor maps a withdrawal request status onto a transaction status.
func StatusFor(s models.WithdrawalStatus) models.TransactionStatus {
	switch s {
	case models.WithdrawalCompleted:
		return models.TransactionCompleted
	case models.WithdrawalRejected:
		return models.TransactionRejected
	default:
		return models.TransactionPending
	}
}
