package data

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/report"
	"github.com/stake-plus/deepresearch/src/snapshot"
)

// EvidenceStore writes snapshot revisions through to MySQL. It satisfies
// snapshot.Persister; a nil store is a no-op so the pipeline can run
// memory-only.
type EvidenceStore struct {
	db *gorm.DB
}

func NewEvidenceStore(db *gorm.DB) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) SaveSnapshot(entry snapshot.Entry) error {
	if s == nil || s.db == nil {
		return nil
	}
	row := EvidenceRevision{
		URLKey:      evidence.Key(entry.Evidence.URL),
		URL:         entry.Evidence.URL,
		Title:       entry.Evidence.Title,
		Content:     entry.Evidence.Content,
		ContentHash: entry.Evidence.ContentHash,
		SourceType:  string(entry.Evidence.SourceType),
		Notes:       entry.Evidence.Notes,
		Revision:    entry.Evidence.Revision,
		TTLClass:    entry.TTLClass,
		ExpiresAt:   entry.ExpiresAt,
		AccessedAt:  entry.Evidence.AccessedAt,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("save revision %d of %s: %w", row.Revision, row.URLKey, err)
	}
	return nil
}

// History returns all persisted revisions of a URL, oldest first.
func (s *EvidenceStore) History(url string) ([]EvidenceRevision, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []EvidenceRevision
	err := s.db.Where("url_key = ?", evidence.Key(url)).Order("revision asc").Find(&rows).Error
	return rows, err
}

// Latest returns the newest persisted revision of a URL, or nil.
func (s *EvidenceStore) Latest(url string) (*EvidenceRevision, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var row EvidenceRevision
	err := s.db.Where("url_key = ?", evidence.Key(url)).Order("revision desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// RunStore persists finished run reports.
type RunStore struct {
	db *gorm.DB
}

func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Save(rep *report.Report) error {
	if s == nil || s.db == nil {
		return nil
	}
	payload, err := rep.JSON()
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rep.RunID, err)
	}
	row := ResearchRun{
		ID:         rep.RunID,
		Question:   rep.Question,
		AsOfDate:   rep.Assumptions.AsOfDate,
		StopReason: rep.StopReason,
		Report:     string(payload),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("save run %s: %w", rep.RunID, err)
	}
	return nil
}

func (s *RunStore) Get(id string) (*ResearchRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var row ResearchRun
	err := s.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *RunStore) Recent(limit int) ([]ResearchRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var rows []ResearchRun
	err := s.db.Order("created_at desc").Limit(limit).Find(&rows).Error
	return rows, err
}
