package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to SubmissionStatus
		want     bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusRejected, true},
		{StatusUnderReview, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusUnderReview, false},
		{StatusPending, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
	assert.True(t, StatusApproved.Terminal())
	assert.False(t, StatusUnderReview.Terminal())
	assert.False(t, SubmissionStatus("draft").Valid())
}

func TestRegion_Matches(t *testing.T) {
	r := Region{
		States:   []string{"Maharashtra"},
		Cities:   []string{"Bengaluru"},
		Pincodes: []string{"110001"},
	}

	assert.True(t, r.Matches("maharashtra", "", ""))
	assert.True(t, r.Matches("Karnataka", " BENGALURU ", ""))
	assert.True(t, r.Matches("", "", "110001"))
	assert.False(t, r.Matches("Delhi", "New Delhi", "110002"))
	assert.False(t, r.Matches("", "", ""))
}

func TestRole(t *testing.T) {
	assert.True(t, RoleAdmin.IsStaff())
	assert.True(t, RoleRegionAdmin.IsStaff())
	assert.False(t, RoleUser.IsStaff())
	assert.False(t, Role("root").Valid())
}

func TestUser_IsLocked(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	assert.False(t, (&User{}).IsLocked(now))
	assert.True(t, (&User{LockedUntil: &later}).IsLocked(now))
	assert.False(t, (&User{LockedUntil: &earlier}).IsLocked(now))
}
