package ledger

import (
	"sort"

	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// Link is one admin payment claimed (fully or partly) by a withdrawal.
type Link struct {
	PaymentID utils.SixID
	Amount    float64
	Full      bool // the payment has nothing left after this claim
}

// PlanLinks picks admin payments oldest first and claims from each until
// amount is covered. The last payment may be claimed partially. Payments
// with nothing remaining are skipped.
func PlanLinks(payments []models.AdminPayment, amount float64) []Link {
	sorted := make([]models.AdminPayment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	var links []Link
	left := RoundCents(amount)
	for _, p := range sorted {
		if left <= 0 {
			break
		}
		remaining := RoundCents(p.Remaining())
		if remaining <= 0 || !p.WithdrawalRequestID.IsZero() {
			continue
		}
		take := remaining
		if take > left {
			take = left
		}
		links = append(links, Link{PaymentID: p.ID, Amount: take, Full: take == remaining})
		left = RoundCents(left - take)
	}
	return links
}
