package store

import "time"

// DocumentTagType distinguishes tags the store manages from caller tags.
type DocumentTagType string

const (
	// TagTypeUserDefined marks a caller-supplied tag.
	TagTypeUserDefined DocumentTagType = "USERDEFINED"

	// TagTypeSystemDefined marks a tag the store itself manages.
	TagTypeSystemDefined DocumentTagType = "SYSTEMDEFINED"
)

// System-managed tag keys.
const (
	TagUntagged = "untagged"
	TagPath     = "path"
)

// systemTagKeys are reserved; caller-supplied tags using them are filtered
// out unless explicitly marked system-defined.
var systemTagKeys = map[string]bool{
	TagUntagged: true,
	TagPath:     true,
}

// Document is a stored document's metadata record.
type Document struct {
	DocumentID          string
	Path                string
	ContentType         string
	ContentLength       *int64
	Checksum            string
	UserID              string
	InsertedDate        time.Time
	BelongsToDocumentID string

	// Children holds child documents when a lookup requests them.
	Children []Document
}

// ChildDocument pairs a child document with its tags for a combined save.
type ChildDocument struct {
	Document Document
	Tags     []DocumentTag
}

// DocumentTag is a key/value tag on a document.
type DocumentTag struct {
	DocumentID   string
	Key          string
	Value        string
	Type         DocumentTagType
	UserID       string
	InsertedDate time.Time
}

// DocumentFormat records a rendered format of a document.
type DocumentFormat struct {
	DocumentID   string
	ContentType  string
	UserID       string
	InsertedDate time.Time
}

// Preset is a reusable tag template.
type Preset struct {
	ID           string
	Type         string
	Name         string
	UserID       string
	InsertedDate time.Time
}

// PresetTag is a tag key belonging to a preset.
type PresetTag struct {
	PresetID     string
	Key          string
	UserID       string
	InsertedDate time.Time
}
