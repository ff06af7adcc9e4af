package settlement

import "campusnest/internal/repository"

type PeriodQuery struct {
	From   string `form:"from"`
	To     string `form:"to"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// Report is the platform view of a period: revenue earned and what is owed
// to each landlord.
type Report struct {
	From      string                         `json:"from,omitempty"`
	To        string                         `json:"to,omitempty"`
	Totals    repository.SettlementTotals    `json:"totals"`
	Landlords []repository.LandlordPayoutRow `json:"landlords"`
}
