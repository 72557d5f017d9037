package data

import "time"

// EvidenceRevision is one immutable snapshot revision. New revisions insert;
// old rows are never updated.
type EvidenceRevision struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	URLKey      string `gorm:"size:16;index;not null"` // xxhash of the normalized URL
	URL         string `gorm:"size:2048;not null"`
	Title       string `gorm:"size:512"`
	Content     string `gorm:"type:mediumtext"`
	ContentHash string `gorm:"size:64;not null"`
	SourceType  string `gorm:"size:16"`
	Notes       string `gorm:"size:512"`
	Revision    int    `gorm:"not null"`
	TTLClass    string `gorm:"size:32"`
	ExpiresAt   time.Time
	AccessedAt  time.Time `gorm:"index"`
	CreatedAt   time.Time
}

// ResearchRun is one finished run with its full report JSON.
type ResearchRun struct {
	ID         string `gorm:"primaryKey;size:36"`
	Question   string `gorm:"size:1024;not null"`
	AsOfDate   string `gorm:"size:10"`
	StopReason string `gorm:"size:512"`
	Report     string `gorm:"type:mediumtext;not null"`
	CreatedAt  time.Time
}
