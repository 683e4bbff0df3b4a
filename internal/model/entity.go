package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel is the shared id/timestamp columns every table embeds.
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Meeting is a two-party translated video meeting. Only the REST
// meeting-creation handler writes it; the pipeline never does, and
// transcript archival on teardown writes VoiceRecord rows instead.
type Meeting struct {
	BaseModel
	Code    string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	EndedAt *time.Time `json:"ended_at,omitempty"`

	Attendees []Attendee `gorm:"foreignKey:MeetingID" json:"attendees,omitempty"`
}

func (Meeting) TableName() string {
	return "meetings"
}

// Attendee is one of a Meeting's at-most-two participants.
type Attendee struct {
	BaseModel
	MeetingID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"meeting_id"`
	DisplayName string     `gorm:"type:varchar(100);not null" json:"display_name"`
	JoinedAt    time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`

	Meeting Meeting `gorm:"foreignKey:MeetingID" json:"meeting,omitempty"`
}

func (Attendee) TableName() string {
	return "attendees"
}

// VoiceRecord is one archived transcript line, flushed from the Redis
// transcript buffer to Postgres on room teardown (grounded in the
// teacher's saveTranscriptsToDatabase).
type VoiceRecord struct {
	BaseModel
	MeetingID      uuid.UUID `gorm:"type:uuid;not null;index" json:"meeting_id"`
	AttendeeID     uuid.UUID `gorm:"type:uuid;not null" json:"attendee_id"`
	OriginalText   string    `gorm:"type:text" json:"original_text"`
	TranslatedText string    `gorm:"type:text" json:"translated_text"`
	SourceLangCode string    `gorm:"type:varchar(10)" json:"source_lang_code"`
	TargetLangCode string    `gorm:"type:varchar(10)" json:"target_lang_code"`
	SpokenAt       time.Time `json:"spoken_at"`
}

func (VoiceRecord) TableName() string {
	return "voice_records"
}
