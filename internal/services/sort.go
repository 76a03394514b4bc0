package services

import (
	"sort"

	"voyago/backend/internal/models"
)

// In-memory orderings used when an ordered query cannot be served.

func sortListingsNewestFirst(listings []models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
}

func sortWithdrawalsNewestFirst(reqs []models.WithdrawalRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].RequestedAt.After(reqs[j].RequestedAt)
	})
}
