package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"gorm.io/gorm"

	"github.com/m1ome/ex-eip712/pkg/signing"
)

// SignatureRecord is one journaled signature. Secrets are never stored.
type SignatureRecord struct {
	ID           uint      `gorm:"primaryKey"`
	Method       string    `gorm:"column:method;type:varchar(32);not null;index:idx_signature_journal_method_created_at,priority:1"`
	Digest       string    `gorm:"column:digest;type:char(66);not null"`
	Signature    string    `gorm:"column:signature;type:char(132);not null"`
	ConnectionID string    `gorm:"column:connection_id;type:varchar(64);not null;default:''"`
	CreatedAt    time.Time `gorm:"index:idx_signature_journal_method_created_at,priority:2"`
}

func (SignatureRecord) TableName() string {
	return "signature_journal"
}

// JournalStore persists signing receipts.
type JournalStore struct {
	db *gorm.DB
}

func NewJournalStore(db *gorm.DB) *JournalStore {
	return &JournalStore{db: db}
}

// Record stores a successful signing outcome for method.
func (s *JournalStore) Record(method string, receipt signing.Receipt, connectionID string) (*SignatureRecord, error) {
	record := &SignatureRecord{
		Method:       method,
		Digest:       hexutil.Encode(receipt.Digest),
		Signature:    receipt.Signature.String(),
		ConnectionID: connectionID,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to store signature record: %w", err)
	}
	return record, nil
}

// List returns records, newest first unless options say otherwise.
// An empty method matches every method.
func (s *JournalStore) List(method string, options *ListOptions) ([]SignatureRecord, error) {
	query := applyListOptions(s.scope(method), "created_at", SortTypeDescending, options)

	var records []SignatureRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list signature records: %w", err)
	}
	return records, nil
}

// Count returns the number of records for method, or all records when
// method is empty.
func (s *JournalStore) Count(method string) (int64, error) {
	var total int64
	if err := s.scope(method).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count signature records: %w", err)
	}
	return total, nil
}

func (s *JournalStore) scope(method string) *gorm.DB {
	query := s.db.Model(&SignatureRecord{})
	if method != "" {
		query = query.Where("method = ?", method)
	}
	return query
}
