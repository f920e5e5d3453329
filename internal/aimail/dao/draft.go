package dao

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Draft представляет черновик письма. Содержание хранится в двух формах:
// блочное представление редактора (Blocks) и готовый HTML экспорт (BodyHTML).
type Draft struct {
	Id        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string          `json:"title"`
	To          string          `json:"to"`
	AuthorEmail string          `json:"author_email" gorm:"index"`
	Blocks      json.RawMessage `json:"blocks" gorm:"type:jsonb"`
	BodyHTML    string          `json:"body_html"`
}

// Возвращает имя таблицы для данного типа структуры.
func (Draft) TableName() string { return "drafts" }

// CreateDraft создает новый черновик. Идентификатор генерируется, если не задан.
func CreateDraft(db *gorm.DB, draft *Draft) error {
	if draft.Id == "" {
		draft.Id = GenID()
	}
	return db.Create(draft).Error
}

// GetDraft возвращает черновик по идентификатору.
func GetDraft(db *gorm.DB, id string) (*Draft, error) {
	var draft Draft
	if err := db.Where("id = ?", id).First(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

// GetDraftList возвращает черновики автора, отсортированные по времени изменения.
func GetDraftList(db *gorm.DB, authorEmail string, limit int, offset int) ([]Draft, int64, error) {
	query := db.Model(&Draft{})
	if authorEmail != "" {
		query = query.Where("author_email = ?", authorEmail)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var drafts []Draft
	if err := query.
		Order("updated_at desc").
		Limit(limit).
		Offset(offset).
		Find(&drafts).Error; err != nil {
		return nil, 0, err
	}
	return drafts, count, nil
}

// UpdateDraftBody сохраняет блочное представление и HTML экспорт черновика.
func UpdateDraftBody(db *gorm.DB, id string, blocks json.RawMessage, bodyHTML string) error {
	result := db.Model(&Draft{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"blocks":     blocks,
			"body_html":  bodyHTML,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateDraftHTML кэширует свежий HTML экспорт черновика. Вызывается из
// дебаунса экспорта, блочное представление не трогает.
func UpdateDraftHTML(db *gorm.DB, id string, bodyHTML string) error {
	return db.Model(&Draft{}).
		Where("id = ?", id).
		Update("body_html", bodyHTML).Error
}

// UpsertDraft создает черновик или обновляет существующий по идентификатору.
func UpsertDraft(db *gorm.DB, draft *Draft) error {
	if draft.Id == "" {
		draft.Id = GenID()
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "to", "blocks", "body_html", "updated_at"}),
	}).Create(draft).Error
}

// DeleteDraft удаляет черновик и связанные с ним вложения.
func DeleteDraft(db *gorm.DB, id string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var assets []FileAsset
		if err := tx.Where("draft_id = ?", id).Find(&assets).Error; err != nil {
			return err
		}
		for _, asset := range assets {
			if err := tx.Delete(&asset).Error; err != nil {
				return err
			}
			if FileStorage != nil {
				if err := FileStorage.Delete(asset.Id); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
		}
		return tx.Delete(&Draft{}, "id = ?", id).Error
	})
}
