package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"Niche_Community/internal/model"
	"Niche_Community/internal/remote"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository 以 documents 表实现的文档存储
type DocumentRepository struct {
	DB *gorm.DB
}

var _ remote.Store = (*DocumentRepository)(nil)

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

var docConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
}

func (r *DocumentRepository) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	var row model.Document
	if err := r.DB.WithContext(ctx).
		Where("collection=? AND doc_id=?", collection, id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return remote.Document{}, remote.ErrNotFound
		}
		return remote.Document{}, err
	}
	return toDocument(row)
}

// Query 按主键（即创建顺序）取出集合。字符串等值条件下推为 JSON 字段过滤，
// 其余过滤、排序和 Limit 仍在内存中完成，单个集合按万级文档设计
func (r *DocumentRepository) Query(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	db := r.DB.WithContext(ctx).Where("collection=?", collection)
	for _, f := range q.Filters {
		if cond, ok := jsonEquals(r.DB.Dialector.Name(), f); ok {
			db = db.Where(cond, f.Value)
		}
	}
	var rows []model.Document
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]remote.Document, 0, len(rows))
	for _, row := range rows {
		d, err := toDocument(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return remote.Apply(docs, q), nil
}

func (r *DocumentRepository) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := r.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Create 幂等插入：(collection, doc_id) 已存在时不写入并返回 ErrAlreadyExists
func (r *DocumentRepository) Create(ctx context.Context, collection, id string, data map[string]any) error {
	row, err := newRow(collection, id, data)
	if err != nil {
		return err
	}
	c := docConflict
	c.DoNothing = true
	tx := r.DB.WithContext(ctx).Clauses(c).Create(&row)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return remote.ErrAlreadyExists
	}
	return nil
}

// Set 覆盖写入，不存在则创建
func (r *DocumentRepository) Set(ctx context.Context, collection, id string, data map[string]any) error {
	row, err := newRow(collection, id, data)
	if err != nil {
		return err
	}
	c := docConflict
	c.DoUpdates = clause.AssignmentColumns([]string{"data", "updated_at"})
	return r.DB.WithContext(ctx).Clauses(c).Create(&row).Error
}

func (r *DocumentRepository) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	return r.mutate(ctx, collection, id, func(data map[string]any) error {
		return remote.Merge(data, partial)
	})
}

// Increment 在行锁内读-改-写，结果不小于 0
func (r *DocumentRepository) Increment(ctx context.Context, collection, id, path string, delta int64) error {
	return r.mutate(ctx, collection, id, func(data map[string]any) error {
		_, err := remote.IncrementField(data, path, delta)
		return err
	})
}

// Delete 幂等删除，removed 表示本次确实删掉了文档
func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) (bool, error) {
	tx := r.DB.WithContext(ctx).
		Where("collection=? AND doc_id=?", collection, id).
		Delete(&model.Document{})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *DocumentRepository) mutate(ctx context.Context, collection, id string, fn func(data map[string]any) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Document
		// select for update 避免并发丢失更新
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection=? AND doc_id=?", collection, id).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return remote.ErrNotFound
			}
			return err
		}
		data := map[string]any{}
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		if err := fn(data); err != nil {
			return err
		}
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		return tx.Model(&model.Document{}).Where("id=?", row.ID).Update("data", string(b)).Error
	})
}

var fieldPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// jsonEquals 生成 data 中某个字符串字段的等值条件；结果只会比内存过滤更宽，由 Apply 再做一次精确判断
func jsonEquals(dialect string, f remote.Filter) (string, bool) {
	if f.Op != remote.OpEq || !fieldPath.MatchString(f.Field) {
		return "", false
	}
	if _, ok := f.Value.(string); !ok {
		return "", false
	}
	path := "$." + f.Field
	switch dialect {
	case "mysql":
		return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(data, '%s')) = ?", path), true
	case "sqlite":
		return fmt.Sprintf("json_extract(data, '%s') = ?", path), true
	}
	return "", false
}

func newRow(collection, id string, data map[string]any) (model.Document, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return model.Document{}, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return model.Document{Collection: collection, DocID: id, Data: string(b)}, nil
}

func toDocument(row model.Document) (remote.Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
		return remote.Document{}, fmt.Errorf("decode %s/%s: %w", row.Collection, row.DocID, err)
	}
	return remote.Document{
		ID:         row.DocID,
		Data:       data,
		CreateTime: row.CreatedAt,
		UpdateTime: row.UpdatedAt,
	}, nil
}
