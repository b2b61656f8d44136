package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrievanceTransitions(t *testing.T) {
	allowed := map[GrievanceStatus][]GrievanceStatus{
		StatusSubmitted:  {StatusInProgress, StatusResolved, StatusClosed},
		StatusInProgress: {StatusResolved, StatusClosed, StatusSubmitted},
		StatusResolved:   {StatusClosed, StatusInProgress},
		StatusClosed:     {StatusInProgress},
	}

	for _, from := range GrievanceStatuses {
		for _, to := range GrievanceStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestClosedCannotReturnToSubmitted(t *testing.T) {
	assert.False(t, StatusClosed.CanTransitionTo(StatusSubmitted))
	assert.False(t, StatusClosed.CanTransitionTo(StatusResolved))
	assert.True(t, StatusClosed.CanTransitionTo(StatusInProgress))
}

func TestUnknownValues(t *testing.T) {
	assert.False(t, GrievanceStatus("archived").Valid())
	assert.False(t, GrievanceStatus("archived").CanTransitionTo(StatusClosed))
	assert.False(t, GrievanceCategory("sports").Valid())
	assert.False(t, GrievancePriority("critical").Valid())
	assert.True(t, CategoryOther.Valid())
}

func TestNextStatusesIsCopy(t *testing.T) {
	next := StatusClosed.NextStatuses()
	next[0] = StatusSubmitted
	assert.Equal(t, []GrievanceStatus{StatusInProgress}, StatusClosed.NextStatuses())
}

func TestFilterBounds(t *testing.T) {
	cases := []struct {
		filter     GrievanceFilter
		page, size int
	}{
		{GrievanceFilter{}, 1, DefaultPageSize},
		{GrievanceFilter{Page: 3, PageSize: 50}, 3, 50},
		{GrievanceFilter{Page: -1, PageSize: 150}, 1, MaxPageSize},
	}
	for _, tc := range cases {
		page, size := tc.filter.Bounds()
		assert.Equal(t, tc.page, page)
		assert.Equal(t, tc.size, size)
	}
}

func TestUserRecipient(t *testing.T) {
	phone := "+15550100"
	u := User{ID: "u1", FullName: "Dana", Role: RoleAdmin, Email: "dana@uni.edu", Phone: &phone}
	r := u.Recipient()
	assert.Equal(t, "+15550100", r.Phone)
	assert.Empty(t, r.ChatID)
	assert.False(t, r.IsZero())
	assert.True(t, NotificationRecipient{}.IsZero())
}
