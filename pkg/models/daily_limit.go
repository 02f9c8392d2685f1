package models

import "time"

// DailyCategoryCounter counts new points admitted for a category on one day
type DailyCategoryCounter struct {
	Day       string    `json:"day" db:"day"` // YYYY-MM-DD in the configured timezone
	Category  Category  `json:"category" db:"category"`
	Count     int       `json:"count" db:"count"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DailyLimitSettings is the admin-controlled admission limit
type DailyLimitSettings struct {
	Limit     int       `json:"limit" db:"daily_limit"`
	Enabled   bool      `json:"enabled" db:"limit_enabled"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DailyLimitStatus summarizes today's quota usage
type DailyLimitStatus struct {
	Day            string           `json:"day"`
	Enabled        bool             `json:"enabled"`
	Limit          int              `json:"limit"`
	UsedByCategory map[Category]int `json:"used_by_category"`
	Remaining      map[Category]int `json:"remaining"`
}
