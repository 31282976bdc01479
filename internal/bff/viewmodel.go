package bff

import (
	"github.com/booklog/booklog/internal/handler/dto"
	"github.com/booklog/booklog/internal/model"
)

// View names sent to the front end in place of server-side templates.
const (
	ViewHome   = "home"
	ViewLogin  = "login"
	ViewSignup = "register"
	ViewLogs   = "logs"
	ViewSubmit = "submit"
)

// HomeView is the anonymous landing view model.
type HomeView struct {
	View string `json:"view"`
}

// LogsView composes an owner's entries with their reading summary.
// Posts and Stat always come from the same orchestration pass; a failed
// downstream call fails the whole view.
type LogsView struct {
	View   string           `json:"view"`
	Posts  []model.LogEntry `json:"posts"`
	Stat   dto.StatResponse `json:"stat"`
	SortBy model.SortKey    `json:"sortBy"`
}

// SubmitView prefills the entry form for creation or editing.
type SubmitView struct {
	View    string          `json:"view"`
	Heading string          `json:"heading"`
	Submit  string          `json:"submit"`
	Post    *model.LogEntry `json:"post,omitempty"`
	Error   string          `json:"error,omitempty"`
}
