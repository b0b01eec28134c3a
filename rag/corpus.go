package rag

import (
	"context"
	"fmt"
	"strconv"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SectionRecord is one row of the primary corpus: a policy document section.
type SectionRecord struct {
	ID          uint   `gorm:"primaryKey"`
	SectionName string `gorm:"index;not null"`
	Content     string `gorm:"not null"`
}

// FAQRecord is one row of the secondary corpus: a question/answer pair tied
// to a section.
type FAQRecord struct {
	ID          uint   `gorm:"primaryKey"`
	SectionName string `gorm:"index;not null"`
	Question    string `gorm:"not null"`
	Answer      string `gorm:"not null"`
}

// OpenCorpusDB opens the corpus database. Supported drivers: sqlite, postgres.
func OpenCorpusDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported corpus driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open corpus database: %w", err)
	}
	return db, nil
}

// CorpusStore reads the section and FAQ corpora used to build the vector
// indices at startup. The pipeline itself never touches the database.
type CorpusStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCorpusStore creates a corpus store over db.
func NewCorpusStore(db *gorm.DB, logger *zap.Logger) *CorpusStore {
	return &CorpusStore{db: db, logger: logger}
}

// Migrate creates the corpus tables if missing.
func (s *CorpusStore) Migrate() error {
	if err := s.db.AutoMigrate(&SectionRecord{}, &FAQRecord{}); err != nil {
		return fmt.Errorf("migrate corpus schema: %w", err)
	}
	return nil
}

// Sections loads every section row as an index document.
func (s *CorpusStore) Sections(ctx context.Context) ([]Document, error) {
	var records []SectionRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}

	docs := make([]Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, Document{
			ID:      "section-" + strconv.FormatUint(uint64(rec.ID), 10),
			Content: rec.Content,
			Metadata: map[string]any{
				MetaSectionName: rec.SectionName,
			},
		})
	}
	return docs, nil
}

// FAQs loads every FAQ row as an index document. Question and answer are
// joined so similarity search matches on either.
func (s *CorpusStore) FAQs(ctx context.Context) ([]Document, error) {
	var records []FAQRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load FAQs: %w", err)
	}

	docs := make([]Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, Document{
			ID:      "faq-" + strconv.FormatUint(uint64(rec.ID), 10),
			Content: fmt.Sprintf("Q: %s\nA: %s", rec.Question, rec.Answer),
			Metadata: map[string]any{
				MetaSectionName: rec.SectionName,
			},
		})
	}
	return docs, nil
}

// LoadInto populates the section and FAQ vector stores from the corpus.
// Called once at startup; the stores are read-only afterwards.
func (s *CorpusStore) LoadInto(ctx context.Context, sections, faqs VectorStore) error {
	sectionDocs, err := s.Sections(ctx)
	if err != nil {
		return err
	}
	if err := sections.AddDocuments(ctx, sectionDocs); err != nil {
		return fmt.Errorf("index sections: %w", err)
	}

	faqDocs, err := s.FAQs(ctx)
	if err != nil {
		return err
	}
	if err := faqs.AddDocuments(ctx, faqDocs); err != nil {
		return fmt.Errorf("index FAQs: %w", err)
	}

	s.logger.Info("corpus loaded into vector stores",
		zap.Int("sections", len(sectionDocs)),
		zap.Int("faqs", len(faqDocs)))
	return nil
}
