package model

// RecordFilter holds criteria for querying attendance records.
type RecordFilter struct {
	UserID string   `json:"user_id,omitempty"`
	From   string   `json:"from,omitempty"` // inclusive date, DateLayout
	To     string   `json:"to,omitempty"`   // inclusive date, DateLayout
	Status []Status `json:"status,omitempty"`
	Sort   string   `json:"sort,omitempty"` // e.g. "-date", "lateness_minutes"; prefix "-" = descending
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}
