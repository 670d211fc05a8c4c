package docstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/cortex/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record types stored alongside page parents.
const (
	RecordTypePage    = "page"
	RecordTypeSummary = "summary"
)

// ErrInvalidRecord is returned for records without an id or owner.
var ErrInvalidRecord = errors.New("docstore: record id and owner are required")

// Record is one parent document kept outside the vector index.
type Record struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	OwnerID    string    `gorm:"size:128;index:idx_parent_owner_file" json:"owner_id"`
	FileName   string    `gorm:"size:512;index:idx_parent_owner_file" json:"file_name"`
	DocID      string    `gorm:"size:64;index" json:"doc_id"`
	RecordType string    `gorm:"size:32" json:"record_type"`
	Page       int       `json:"page"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName pins the table name.
func (Record) TableName() string { return "parent_records" }

// Store keeps parent records addressed by id.
type Store interface {
	Put(ctx context.Context, records []Record) error
	Get(ctx context.Context, ids []string) (map[string]Record, error)
	ListByFile(ctx context.Context, ownerID, fileName, recordType string) ([]Record, error)
}

// DefaultPath returns the docstore location under a storage root.
func DefaultPath(root string) string {
	return filepath.Join(root, "vector_docstore", "docstore.db")
}

// SQLiteStore 基于 GORM + SQLite 的父文档存储
type SQLiteStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// OpenSQLite 打开数据库文件并执行 AutoMigrate
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := database.OpenSQLite(path, database.DefaultPoolConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := pool.DB().AutoMigrate(&Record{}); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate docstore: %w", err)
	}
	return &SQLiteStore{
		pool:   pool,
		logger: logger.With(zap.String("component", "docstore")),
	}, nil
}

// Put upserts records in one transaction.
func (s *SQLiteStore) Put(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.ID == "" || r.OwnerID == "" {
			return ErrInvalidRecord
		}
	}

	err := s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(records, 100).Error
	})
	if err != nil {
		return fmt.Errorf("put parent records: %w", err)
	}
	s.logger.Debug("parent records stored", zap.Int("count", len(records)))
	return nil
}

// Get returns the records found among ids; missing ids are absent from the map.
func (s *SQLiteStore) Get(ctx context.Context, ids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []Record
	if err := s.pool.DB().WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get parent records: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// ListByFile returns the records of one file in page order; an empty recordType matches all.
func (s *SQLiteStore) ListByFile(ctx context.Context, ownerID, fileName, recordType string) ([]Record, error) {
	q := s.pool.DB().WithContext(ctx).Where("owner_id = ? AND file_name = ?", ownerID, fileName)
	if recordType != "" {
		q = q.Where("record_type = ?", recordType)
	}

	var rows []Record
	if err := q.Order("page ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list parent records: %w", err)
	}
	return rows, nil
}

// Ping checks the underlying database.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Put(_ context.Context, records []Record) error {
	for _, r := range records {
		if r.ID == "" || r.OwnerID == "" {
			return ErrInvalidRecord
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, ids []string) (map[string]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Record, len(ids))
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByFile(_ context.Context, ownerID, fileName, recordType string) ([]Record, error) {
	m.mu.RLock()
	var out []Record
	for _, r := range m.records {
		if r.OwnerID != ownerID || r.FileName != fileName {
			continue
		}
		if recordType != "" && r.RecordType != recordType {
			continue
		}
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
