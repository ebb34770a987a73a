package models

import "time"

// NoticeAudience defines who can see a notice. The zero value means the
// audience was never derived; such notices are visible to staff and admin
// only.
type NoticeAudience string

const (
	AudienceUnset NoticeAudience = ""
	AudienceStaff NoticeAudience = "staff"
	AudienceAll   NoticeAudience = "all"
)

// Valid reports whether the audience is one a caller may set explicitly.
func (a NoticeAudience) Valid() bool {
	switch a {
	case AudienceStaff, AudienceAll:
		return true
	}
	return false
}

// NoticePriority orders notices on the board.
type NoticePriority string

const (
	PriorityNormal    NoticePriority = "normal"
	PriorityImportant NoticePriority = "important"
	PriorityUrgent    NoticePriority = "urgent"
)

// Valid reports whether the priority is a known value.
func (p NoticePriority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityImportant, PriorityUrgent:
		return true
	}
	return false
}

// Notice categories restricted to staff readers.
var StaffNoticeCategories = []string{
	"Staff Meeting",
	"Invigilation Duty",
	"Internal Circular",
	"Timetable Work",
	"Leave / Policy Update",
	"Faculty Training",
	"Research Opportunities",
	"Staff Achievements",
	"Maintenance Notices",
	"IT & System Updates",
}

// Notice categories visible to every authenticated user.
var AllUserNoticeCategories = []string{
	"Holiday Announcement",
	"Exam Timetable",
	"Events",
	"Results",
	"Fee Notices",
	"Emergency Alerts",
	"Workshops / Seminars",
	"Scholarship / Grants",
	"Campus News",
	"Sports / Cultural Updates",
}

// DefaultCategoryAudiences builds the category to audience mapping used to
// derive an audience when the caller omits one. This is the single source of
// truth; services receive it at construction time.
func DefaultCategoryAudiences() map[string]NoticeAudience {
	m := make(map[string]NoticeAudience, len(StaffNoticeCategories)+len(AllUserNoticeCategories))
	for _, c := range StaffNoticeCategories {
		m[c] = AudienceStaff
	}
	for _, c := range AllUserNoticeCategories {
		m[c] = AudienceAll
	}
	return m
}

// KnownNoticeCategory reports whether the category belongs to either set.
func KnownNoticeCategory(category string) bool {
	_, ok := DefaultCategoryAudiences()[category]
	return ok
}

// Notice represents a posted announcement.
type Notice struct {
	ID         string         `db:"id" json:"id"`
	Category   string         `db:"category" json:"category"`
	Audience   NoticeAudience `db:"audience" json:"audience,omitempty"`
	Title      string         `db:"title" json:"title,omitempty"`
	Content    string         `db:"content" json:"content,omitempty"`
	Date       *time.Time     `db:"date" json:"date,omitempty"`
	DateTime   *time.Time     `db:"event_time" json:"datetime,omitempty"`
	PostedBy   *string        `db:"posted_by" json:"posted_by,omitempty"`
	Priority   NoticePriority `db:"priority" json:"priority"`
	ExpiryDate *time.Time     `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// VisibleTo reports whether the notice may be read by the given role.
// Notices with an unset audience are treated conservatively as staff-only.
func (n *Notice) VisibleTo(role UserRole) bool {
	if role.HasStaffPrivilege() {
		return true
	}
	return n.Audience == AudienceAll
}

// NoticeFilter captures filtering options for listing notices.
type NoticeFilter struct {
	// AudienceAll restricts the listing to audience=all rows (student reads).
	AudienceAll bool
	Category    string
	Page        int
	PageSize    int
}
