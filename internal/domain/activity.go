package domain

import (
	"context"
	"errors"
	"time"
)

// ErrIncompleteActivity indicates the activity source returned a record missing
// start_date or elapsed_time.
var ErrIncompleteActivity = errors.New("activity detail missing required fields")

// ActivityDetail is the subset of a Strava activity the engine needs.
type ActivityDetail struct {
	ID             int64
	Name           string
	Type           string
	StartDate      time.Time
	ElapsedSeconds int
	Distance       float64
}

// Window is the correlation interval covered by the activity, inclusive on
// both ends to match the listen store's range contract.
func (a ActivityDetail) Window() (start, end time.Time) {
	start = a.StartDate.UTC()
	return start, start.Add(time.Duration(a.ElapsedSeconds) * time.Second)
}

// ActivitySource fetches activity detail from the remote activity service.
type ActivitySource interface {
	Activity(ctx context.Context, activityID int64, accessToken string) (ActivityDetail, error)
}

// AnnotationSink writes the free-text description back to the activity service.
type AnnotationSink interface {
	UpdateDescription(ctx context.Context, activityID int64, accessToken, description string) error
}
