package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thereayou/chatsync/internal/docstore"
)

var _ docstore.Store = (*Database)(nil)

func (d *Database) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var rec documentRecord
	err := d.db.WithContext(ctx).First(&rec, "collection = ? AND id = ?", collection, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return rec.document()
}

func (d *Database) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	rec := documentRecord{
		Collection: collection,
		ID:         id,
		Fields:     encodeFields(docstore.ResolveServerTimestamps(fields, d.now())),
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fields", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	d.announce(ctx, collection)
	return nil
}

func (d *Database) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	rec := documentRecord{
		Collection: collection,
		ID:         d.newID(),
		Fields:     encodeFields(docstore.ResolveServerTimestamps(fields, d.now())),
	}
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	d.announce(ctx, collection)
	return rec.ID, nil
}

func (d *Database) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	patch := encodeFields(docstore.ResolveServerTimestamps(fields, d.now()))
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec documentRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&rec, "collection = ? AND id = ?", collection, id).Error
		if err != nil {
			return err
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			rec.Fields[k] = v
		}
		return tx.Save(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("update %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	d.announce(ctx, collection)
	return nil
}

// Query narrows candidates in SQL where the filter maps onto jsonb and then
// evaluates the full query in memory, so both stores share one semantics.
func (d *Database) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	tx := d.db.WithContext(ctx).Where("collection = ?", q.Collection)
	for _, f := range q.Where {
		switch {
		case f.Field == docstore.DocumentID && f.Op == docstore.OpEqual:
			if id, ok := f.Value.(string); ok {
				tx = tx.Where("id = ?", id)
			}
		case f.Op == docstore.OpArrayContains && !strings.Contains(f.Field, "."):
			needle, err := json.Marshal([]any{encodeValue(f.Value)})
			if err == nil {
				tx = tx.Where("fields -> ? @> ?::jsonb", f.Field, string(needle))
			}
		}
	}

	var recs []documentRecord
	if err := tx.Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	docs := make([]docstore.Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := rec.document()
		if err != nil {
			d.log.Warn("document_decode_failed", zap.String("collection", rec.Collection), zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return q.Apply(docs), nil
}

// Subscribe re-runs q after every write announced for its collection. The
// first snapshot is delivered immediately.
func (d *Database) Subscribe(ctx context.Context, q docstore.Query) (<-chan docstore.Snapshot, error) {
	changes, err := d.feed.Listen(ctx, q.Collection)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", q.Collection, err)
	}

	out := make(chan docstore.Snapshot)
	go func() {
		defer close(out)
		for {
			docs, err := d.Query(ctx, q)
			if ctx.Err() != nil {
				return
			}
			snap := docstore.Snapshot{Docs: docs, Err: err}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

// announce publishes a write. A failed publish does not undo the write;
// subscribers catch up on the next announced change.
func (d *Database) announce(ctx context.Context, collection string) {
	if err := d.feed.Publish(ctx, collection); err != nil {
		d.log.Warn("change_publish_failed", zap.String("collection", collection), zap.Error(err))
	}
}
