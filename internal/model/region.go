package model

import (
	"strings"
	"time"
)

// Region is a geographic scope assigned to region admins.
// A submission belongs to a region when its state, city or pincode is listed.
type Region struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	States    []string  `json:"states"`
	Cities    []string  `json:"cities"`
	Pincodes  []string  `json:"pincodes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches compares state and city case-insensitively and pincode exactly.
func (r Region) Matches(state, city, pincode string) bool {
	if state != "" && containsFold(r.States, state) {
		return true
	}
	if city != "" && containsFold(r.Cities, city) {
		return true
	}
	if pincode != "" {
		for _, p := range r.Pincodes {
			if p == pincode {
				return true
			}
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}
