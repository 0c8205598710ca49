package models

type TaskList struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
