package dto

import (
	"encoding/json"
	"testing"
)

func TestNumber_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want Number
	}{
		{"json number", `{"isbn": 9780134190440}`, "9780134190440"},
		{"numeric string", `{"isbn": "9780134190440"}`, "9780134190440"},
		{"null", `{"isbn": null}`, ""},
		{"absent", `{}`, ""},
		{"non-numeric string passes through", `{"isbn": "abc"}`, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt := tt
			t.Parallel()

			var req LogRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if req.ISBN != tt.want {
				t.Errorf("ISBN = %q, want %q", req.ISBN, tt.want)
			}
		})
	}
}

func TestLogRequest_FieldNames(t *testing.T) {
	t.Parallel()

	body := `{
		"title": "Dune",
		"author": "Frank Herbert",
		"isbn": 9780441013593,
		"rating": "5",
		"review": "Spice.",
		"notes": "Reread."
	}`

	var req LogRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if req.Title != "Dune" || req.Author != "Frank Herbert" {
		t.Errorf("unexpected decode: %+v", req)
	}
	if req.ISBN != "9780441013593" || req.Rating != "5" {
		t.Errorf("numeric fields decoded as %q/%q", req.ISBN, req.Rating)
	}
	if req.Review != "Spice." || req.Notes != "Reread." {
		t.Errorf("text fields decoded as %q/%q", req.Review, req.Notes)
	}
}

func TestStatResponse_NullEarliestLog(t *testing.T) {
	t.Parallel()

	// An empty history must serialize earliestLog as null, never zero.
	out, err := json.Marshal(StatResponse{NumBooksLogged: 0})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"numBooksLogged":0,"earliestLog":null}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}

func TestStatResponse_WithEarliestLog(t *testing.T) {
	t.Parallel()

	year := 2019
	out, err := json.Marshal(StatResponse{NumBooksLogged: 12, EarliestLog: &year})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"numBooksLogged":12,"earliestLog":2019}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}
