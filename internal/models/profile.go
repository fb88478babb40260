package models

// VisibilityDecision records which scope granted access to a profile
type VisibilityDecision struct {
	Allowed bool
	Scope   Scope
}

// DeniedVisibility is the decision for a profile nobody granted
func DeniedVisibility() VisibilityDecision {
	return VisibilityDecision{}
}

// UserProfile is one record of the get_users response.
// Empty optional values are omitted, as the host does.
type UserProfile struct {
	ID                   int64         `json:"id"`
	Username             string        `json:"username,omitempty"`
	FirstName            string        `json:"firstname,omitempty"`
	LastName             string        `json:"lastname,omitempty"`
	FullName             string        `json:"fullname"`
	Email                string        `json:"email,omitempty"`
	Address              string        `json:"address,omitempty"`
	Phone1               string        `json:"phone1,omitempty"`
	Phone2               string        `json:"phone2,omitempty"`
	ICQ                  string        `json:"icq,omitempty"`
	Skype                string        `json:"skype,omitempty"`
	Yahoo                string        `json:"yahoo,omitempty"`
	AIM                  string        `json:"aim,omitempty"`
	MSN                  string        `json:"msn,omitempty"`
	Department           string        `json:"department,omitempty"`
	Institution          string        `json:"institution,omitempty"`
	Interests            string        `json:"interests,omitempty"`
	FirstAccess          *int64        `json:"firstaccess,omitempty"`
	LastAccess           *int64        `json:"lastaccess,omitempty"`
	Auth                 string        `json:"auth,omitempty"`
	Confirmed            *int          `json:"confirmed,omitempty"`
	IDNumber             string        `json:"idnumber,omitempty"`
	Lang                 string        `json:"lang,omitempty"`
	Theme                string        `json:"theme,omitempty"`
	Timezone             string        `json:"timezone,omitempty"`
	MailFormat           *int          `json:"mailformat,omitempty"`
	Description          string        `json:"description,omitempty"`
	DescriptionFormat    *int          `json:"descriptionformat,omitempty"`
	City                 string        `json:"city,omitempty"`
	URL                  string        `json:"url,omitempty"`
	Country              string        `json:"country,omitempty"`
	ProfileImageURLSmall string        `json:"profileimageurlsmall"`
	ProfileImageURL      string        `json:"profileimageurl"`
	CustomFields         []CustomField `json:"customfields,omitempty"`
	Preferences          []Preference  `json:"preferences,omitempty"`
}

// HasExtendedFields reports whether the extended block was attached
func (p *UserProfile) HasExtendedFields() bool {
	return p.Confirmed != nil || p.MailFormat != nil
}
