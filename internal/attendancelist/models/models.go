package models

import (
	"fmt"
	"strings"
	"time"

	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// List is a time-boxed meeting session that professionals check into.
type List struct {
	ID                      domain.ListID
	InstallationName        string
	MeetingDate             string // YYYY-MM-DD
	MeetingTime             string // HH:MM
	CourseTitle             string
	CourseContent           string
	InstructorName          string
	InstructorRole          string
	InstructorQualification string
	Location                string
	Status                  Status
	StartTime               time.Time
	EndTime                 *time.Time
	Duration                string
	CreatedAt               time.Time
}

func (l *List) IsActive() bool {
	return l.Status == StatusActive
}

// Complete closes the list at now and records its duration.
func (l *List) Complete(now time.Time) error {
	if !l.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "attendance list is already completed")
	}
	end := now
	l.Status = StatusCompleted
	l.EndTime = &end
	l.Duration = FormatDuration(now.Sub(l.StartTime))
	return nil
}

// FormatDuration renders whole hours and minutes as "XhYmin", or "Ymin" under
// an hour. Seconds are truncated.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%dh%dmin", hours, minutes)
	}
	return fmt.Sprintf("%dmin", minutes)
}

// CreateRequest describes a new attendance list.
type CreateRequest struct {
	InstallationName        string `json:"installation_name" validate:"required,max=200"`
	MeetingDate             string `json:"meeting_date" validate:"required,datetime=2006-01-02"`
	MeetingTime             string `json:"meeting_time" validate:"required,datetime=15:04"`
	CourseTitle             string `json:"course_title" validate:"required,max=200"`
	CourseContent           string `json:"course_content" validate:"required,max=4000"`
	InstructorName          string `json:"instructor_name" validate:"required,max=200"`
	InstructorRole          string `json:"instructor_role" validate:"required,max=200"`
	InstructorQualification string `json:"instructor_qualification" validate:"required,max=200"`
	Location                string `json:"location" validate:"required,max=200"`
}

func (r *CreateRequest) Normalize() {
	for _, f := range []*string{
		&r.InstallationName, &r.MeetingDate, &r.MeetingTime, &r.CourseTitle, &r.CourseContent,
		&r.InstructorName, &r.InstructorRole, &r.InstructorQualification, &r.Location,
	} {
		*f = strings.TrimSpace(*f)
	}
}
