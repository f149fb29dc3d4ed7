package core

// KindAmount is an amount aggregated by transaction kind.
type KindAmount struct {
	Kind   TransactionKind `json:"kind"`
	Amount Money           `json:"amount"`
}

// Dashboard is the landing-page overview.
type Dashboard struct {
	Projects     int           `json:"projects"`
	Properties   int           `json:"properties"`
	Clients      int           `json:"clients"`
	ActiveLoans  int           `json:"active_loans"`
	Investments  int           `json:"investments"`
	Outstanding  Money         `json:"outstanding"` // principal still owed on active loans
	Invested     Money         `json:"invested"`
	Inflow       Money         `json:"inflow"`
	Outflow      Money         `json:"outflow"`
	ByKind       []KindAmount  `json:"by_kind"`
	Recent       []Transaction `json:"recent"`
	UpcomingDues []Due         `json:"upcoming_dues"`
}

// Due is the next scheduled payment of an active loan.
type Due struct {
	LoanID   string `json:"loan_id"`
	ClientID string `json:"client_id"`
	Date     Date   `json:"date"`
	Amount   Money  `json:"amount"`
}
