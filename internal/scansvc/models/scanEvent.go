package models

// ScanEvent is one row of the recent-activity feed shown on the dashboard.
type ScanEvent struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	When  string `json:"when"` // formatted 2006-01-02 15:04:05, local time
}
