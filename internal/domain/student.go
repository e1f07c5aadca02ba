package domain

import "strings"

// Student is a subject entry of the student directory service.
type Student struct {
	Name    string `json:"StudentName"`
	Address string `json:"StudentAddress"`
	Email   string `json:"Email,omitempty"`
	Phone   string `json:"Phone,omitempty"`
}

// MatchesAddress compares chain addresses case-insensitively.
func (s Student) MatchesAddress(address string) bool {
	return strings.EqualFold(strings.TrimSpace(s.Address), strings.TrimSpace(address))
}
