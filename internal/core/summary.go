package core

import "time"

// MonthSummary is the persisted rollup of one month of one account.
type MonthSummary struct {
	UserID             string    `json:"userId"`
	MonthKey           string    `json:"monthKey"`
	TotalAmount        int       `json:"totalAmount"`
	MaxAmount          int       `json:"maxAmount"`
	AverageAmount      int       `json:"averageAmount"`
	DaysInMonth        int       `json:"daysInMonth"`
	DaysInMonthLeft    int       `json:"daysInMonthLeft"`
	GoalReachedCounter int       `json:"goalReachedCounter"`
	Drinks             int       `json:"drinks"`
	Types              int       `json:"types"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
