package models

import "strings"

// Mail display settings for User.MailDisplay
const (
	MailDisplayHidden        = 0
	MailDisplayEveryone      = 1
	MailDisplayCourseMembers = 2
)

// User mirrors a row of the users table. Only read by this service.
type User struct {
	ID                int64
	Auth              string
	Confirmed         bool
	Deleted           bool
	Suspended         bool
	Username          string
	IDNumber          string
	FirstName         string
	LastName          string
	Email             string
	MailDisplay       int
	Phone1            string
	Phone2            string
	ICQ               string
	Skype             string
	Yahoo             string
	AIM               string
	MSN               string
	Institution       string
	Department        string
	Address           string
	City              string
	Country           string
	Lang              string
	Theme             string
	Timezone          string
	FirstAccess       int64
	LastAccess        int64
	MailFormat        int
	Description       string
	DescriptionFormat int
	URL               string
	Interests         string
}

// FullName joins first and last name the way the fullname criterion matches
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CustomField is a user profile field value
type CustomField struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Name      string `json:"name"`
	ShortName string `json:"shortname"`
}

// Preference is a single user preference
type Preference struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
