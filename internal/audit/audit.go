// Package audit records user activity entries for connection sessions
// and device commands.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry statuses. A session writes one entry per phase; -1 as the user
// number marks activity that failed before a user was identified.
const (
	StatusStarted = "started"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// UnknownUser is the user number recorded when an activity fails before
// authentication resolves an account.
const UnknownUser = -1

// Entry is a single activity log document.
type Entry struct {
	ID         string    `bson:"id" json:"id"`
	UserNo     int       `bson:"user_no" json:"user_no"`
	Activity   string    `bson:"activity" json:"activity"`
	Status     string    `bson:"status" json:"status"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	DeviceName string    `bson:"device_name,omitempty" json:"device_name,omitempty"`
}

// NewEntry creates an entry stamped with a fresh ID and the current time.
func NewEntry(userNo int, activity, status, deviceName string) Entry {
	return Entry{
		ID:         uuid.NewString(),
		UserNo:     userNo,
		Activity:   activity,
		Status:     status,
		Timestamp:  time.Now().UTC(),
		DeviceName: deviceName,
	}
}
