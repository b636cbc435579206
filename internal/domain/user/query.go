package user

import (
	"sort"
	"strings"
)

// Summary is a list row: enough to render an entry and fetch the full record.
type Summary struct {
	FullName string `json:"fullName"`
	ID       string `json:"id"`
}

// normalize prepares a string for case-insensitive, whitespace-tolerant
// comparison.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Matches reports whether query is empty or a case-insensitive substring of
// any of fields.
func Matches(query string, fields ...string) bool {
	q := normalize(query)
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// SortByRecency orders users by creation time, newest first. Users created in
// the same second are ordered by id so the result is deterministic.
func SortByRecency(users []User) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i].Base(), users[j].Base()
		if !a.CreatedAt.Equal(b.CreatedAt.Time) {
			return a.CreatedAt.After(b.CreatedAt.Time)
		}
		return a.ID < b.ID
	})
}

// Summarize maps users to list rows, preserving order.
func Summarize(users []User) []Summary {
	out := make([]Summary, len(users))
	for i, u := range users {
		out[i] = Summary{FullName: u.Base().FullName, ID: u.Base().ID}
	}
	return out
}
