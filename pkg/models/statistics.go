package models

// Statistics is an overview of the knowledge point store
type Statistics struct {
	ActivePoints   int              `json:"active_points"`
	DeletedPoints  int              `json:"deleted_points"`
	DueNow         int              `json:"due_now"`
	AverageMastery float64          `json:"average_mastery"`
	ByCategory     map[Category]int `json:"by_category"`
}
