package mightycall

import "time"

type PhoneNumber struct {
	ExternalID   string
	Number       string
	Label        string
	NumberDigits string
	IsActive     bool
	Metadata     Record
}

type Extension struct {
	ExternalID  string
	Extension   string
	DisplayName string
	Metadata    Record
}

type Call struct {
	ExternalID      string
	Direction       string
	Status          string
	From            string
	To              string
	QueueName       string
	AgentExtension  string
	StartedAt       string
	AnsweredAt      string
	EndedAt         string
	DurationSeconds int
	RecordingURL    string
	Metadata        Record
}

// JournalRequest is an entry of the provider's request journal: calls,
// messages and voicemails share this shape.
type JournalRequest struct {
	ID              string
	Type            string
	Created         string
	From            string
	To              string
	Status          string
	Direction       string
	Text            string
	DurationSeconds int
	RecordingURL    string
	Metadata        Record
}

type Recording struct {
	ID              string
	CallID          string
	URL             string
	DurationSeconds int
	Date            string
	Metadata        Record
}

// DateRange bounds a fetch. Both ends are inclusive.
type DateRange struct {
	From time.Time
	To   time.Time
}

type CallFilter struct {
	StartUTC time.Time
	EndUTC   time.Time
	PageSize int
	// PhoneNumbers keeps only calls whose from or to matches one of them.
	PhoneNumbers []string
}

type JournalFilter struct {
	From     time.Time
	To       time.Time
	Type     string
	PageSize int
}
