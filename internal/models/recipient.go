package models

const (
	RoleEmployee = "employee"
	StatusActive = "active"
)

// Preferences default to enabled when the backing column does not exist.
type Preferences struct {
	SMSEnabled      bool `json:"smsEnabled"`
	EmailEnabled    bool `json:"emailEnabled"`
	GloballyEnabled bool `json:"globallyEnabled"`
}

func DefaultPreferences() Preferences {
	return Preferences{SMSEnabled: true, EmailEnabled: true, GloballyEnabled: true}
}

func (p Preferences) AllowsSMS() bool {
	return p.GloballyEnabled && p.SMSEnabled
}

func (p Preferences) AllowsEmail() bool {
	return p.GloballyEnabled && p.EmailEnabled
}

// Recipient carries contact data and preferences loaded at enrichment time.
type Recipient struct {
	ID          int64       `json:"id"`
	DisplayName string      `json:"displayName"`
	Phone       string      `json:"-"`
	Email       string      `json:"-"`
	Role        string      `json:"role"`
	Status      string      `json:"status"`
	Preferences Preferences `json:"preferences"`
}

// Eligible reports whether the recipient is still an active employee.
func (r Recipient) Eligible() bool {
	return r.Role == RoleEmployee && r.Status == StatusActive
}

// PreferenceColumns names the user-table columns holding each preference.
// An empty name means the column does not exist and the preference is on.
type PreferenceColumns struct {
	SMS    string `json:"sms,omitempty"`
	Email  string `json:"email,omitempty"`
	Global string `json:"global,omitempty"`
}

// RecipientRef identifies a recipient by id and display name.
type RecipientRef struct {
	ID   int64
	Name string
}
