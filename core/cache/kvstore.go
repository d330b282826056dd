package cache

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// kvRow is the gorm model of the persistent key-value tier.
type kvRow struct {
	Key       string    `gorm:"primaryKey;column:cache_key;size:512"`
	Value     []byte    `gorm:"column:value"`
	Timestamp time.Time `gorm:"column:timestamp"`
	TTLMillis int64     `gorm:"column:ttl_millis"`
	Size      int64     `gorm:"column:size"`
}

func (kvRow) TableName() string {
	return "cache_entries"
}

// kvStore is the durable middle tier backed by an embedded database.
type kvStore struct {
	db *gorm.DB
}

func newKVStore(db *gorm.DB) (*kvStore, error) {
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, err
	}
	return &kvStore{db: db}, nil
}

func (s *kvStore) get(key string) (*Entry, bool, error) {
	var row kvRow
	err := s.db.First(&row, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &Entry{
		Data:      row.Value,
		Timestamp: row.Timestamp,
		TTL:       time.Duration(row.TTLMillis) * time.Millisecond,
		Size:      row.Size,
	}, true, nil
}

func (s *kvStore) set(key string, e Entry) error {
	row := kvRow{
		Key:       key,
		Value:     e.Data,
		Timestamp: e.Timestamp,
		TTLMillis: e.TTL.Milliseconds(),
		Size:      e.Size,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *kvStore) delete(key string) error {
	return s.db.Delete(&kvRow{}, "cache_key = ?", key).Error
}

func (s *kvStore) clear() error {
	return s.db.Where("1 = 1").Delete(&kvRow{}).Error
}
