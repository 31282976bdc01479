// Package dto defines request/response shapes for the data API.
package dto

import (
	"encoding/json"

	"github.com/booklog/booklog/internal/model"
)

// Number accepts a JSON number or a numeric string so that both form-fed
// and programmatic clients can post isbn/rating. Validation happens in the
// service layer; this type only normalizes the wire shape.
type Number string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	*n = Number(b)
	return nil
}

// LogRequest is the body for creating or replacing a log entry.
// Field names match the public contract exactly.
type LogRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   Number `json:"isbn"`
	Rating Number `json:"rating"`
	Review string `json:"review"`
	Notes  string `json:"notes"`
}

// SearchRequest is the body for a keyword search.
type SearchRequest struct {
	Keyword string `json:"keyword"`
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the error payload shape.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatResponse mirrors model.StatSummary on the wire.
type StatResponse struct {
	NumBooksLogged int  `json:"numBooksLogged"`
	EarliestLog    *int `json:"earliestLog"`
}

// ToStatResponse converts a summary to its wire shape.
func ToStatResponse(s *model.StatSummary) StatResponse {
	return StatResponse{
		NumBooksLogged: s.TotalCount,
		EarliestLog:    s.EarliestYear,
	}
}
