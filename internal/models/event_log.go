package models

import (
	"encoding/json"
	"time"
)

// Event names written to the event log
const (
	EventRoleUnassigned       = `\core\event\role_unassigned`
	EventUserEnrolmentDeleted = `\core\event\user_enrolment_deleted`
)

// Event CRUD markers
const (
	EventCRUDDelete = "d"
)

// LogEvent is one row of the event log
type LogEvent struct {
	ID            int64      `json:"id"`
	EventName     string     `json:"eventname"`
	Component     string     `json:"component"`
	CRUD          string     `json:"crud"`
	ContextLevel  int        `json:"contextlevel"`
	ContextID     int64      `json:"contextinstanceid"`
	ObjectTable   string     `json:"objecttable"`
	ObjectID      int64      `json:"objectid"`
	UserID        int64      `json:"userid"`
	RelatedUserID int64      `json:"relateduserid"`
	CourseID      int64      `json:"courseid"`
	Other         EventOther `json:"other"`
	TimeCreated   time.Time  `json:"timecreated"`
}

// EventOther holds event specific data stored as JSONB
type EventOther map[string]any

// MarshalJSON implements json.Marshaler
func (o EventOther) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(o))
}

// UnmarshalJSON implements json.Unmarshaler
func (o *EventOther) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*o = EventOther(m)
	return nil
}
