package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Postgres is a Store backed by a PostgreSQL table of jsonb documents.
//
// Subscribers only observe writes made through the same Postgres value;
// writes from other processes show up on the next GetAll.
type Postgres struct {
	hub

	db *gorm.DB
}

type pgDocument struct {
	Collection string `gorm:"primaryKey"`
	ID         string `gorm:"primaryKey"`
	Data       string `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time
}

func (pgDocument) TableName() string { return "documents" }

// OpenPostgres connects to dsn and creates the documents table if needed.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("docstore.OpenPostgres: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("docstore.OpenPostgres: %w", err)
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&pgDocument{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("docstore.OpenPostgres: migrate: %w", err)
	}
	slog.Debug("opened postgres document store")
	return &Postgres{db: db}, nil
}

func (p *Postgres) GetAll(ctx context.Context, collection string) ([]Document, error) {
	var rows []pgDocument
	err := p.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("docstore.Postgres.GetAll: %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, Document{ID: r.ID, Data: json.RawMessage(r.Data)})
	}
	return docs, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var r pgDocument
	err := p.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore.Postgres.Get: %s/%s: %w", collection, id, err)
	}
	return Document{ID: r.ID, Data: json.RawMessage(r.Data)}, nil
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	if err := validate(collection, id); err != nil {
		return fmt.Errorf("docstore.Postgres.Set: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("docstore.Postgres.Set: %s/%s: invalid json", collection, id)
	}
	doc := pgDocument{Collection: collection, ID: id, Data: string(data)}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("docstore.Postgres.Set: %s/%s: %w", collection, id, err)
	}
	p.publish(Change{Collection: collection, ID: id, Kind: Updated, Data: clone(data)})
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	res := p.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&pgDocument{})
	if res.Error != nil {
		return fmt.Errorf("docstore.Postgres.Delete: %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected > 0 {
		p.publish(Change{Collection: collection, ID: id, Kind: Deleted})
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
