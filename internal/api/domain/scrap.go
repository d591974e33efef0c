package domain

import "slices"

// Scrap statuses
const (
	ScrapStatusPending   = "pending"
	ScrapStatusAccepted  = "accepted"
	ScrapStatusCompleted = "completed"
	ScrapStatusCancelled = "cancelled"
)

// Scrap categories
const (
	ScrapCategoryMetal   = "metal"
	ScrapCategoryPlastic = "plastic"
	ScrapCategoryPaper   = "paper"
	ScrapCategoryEWaste  = "e_waste"
	ScrapCategoryGlass   = "glass"
	ScrapCategoryOther   = "other"
)

// Scrap payout methods on completion
const (
	PayoutMethodCash   = "cash"
	PayoutMethodWallet = "wallet"
)

var scrapTransitions = map[string][]string{
	ScrapStatusPending:  {ScrapStatusAccepted, ScrapStatusCancelled},
	ScrapStatusAccepted: {ScrapStatusCompleted, ScrapStatusCancelled},
}

// CanTransitionScrap reports whether a scrap item may move from one status to another
func CanTransitionScrap(from, to string) bool {
	return slices.Contains(scrapTransitions[from], to)
}

// IsTerminalScrapStatus reports whether no further transitions exist
func IsTerminalScrapStatus(status string) bool {
	return len(scrapTransitions[status]) == 0
}

// IsValidScrapStatus reports whether status is a known scrap status
func IsValidScrapStatus(status string) bool {
	switch status {
	case ScrapStatusPending, ScrapStatusAccepted, ScrapStatusCompleted, ScrapStatusCancelled:
		return true
	}
	return false
}

// IsScrapCategory reports whether c is a known scrap category
func IsScrapCategory(c string) bool {
	switch c {
	case ScrapCategoryMetal, ScrapCategoryPlastic, ScrapCategoryPaper,
		ScrapCategoryEWaste, ScrapCategoryGlass, ScrapCategoryOther:
		return true
	}
	return false
}
