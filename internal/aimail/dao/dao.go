// DAO (Data Access Object) - предоставляет интерфейс для взаимодействия с базой данных. Содержит функции для работы с сущностями почтового композера: черновиками и файловыми вложениями. Обеспечивает абстракцию от конкретной реализации базы данных и упрощает доступ к данным приложения.
//
// Основные возможности:
//   - Работа с черновиками писем (создание, обновление тела, получение, удаление).
//   - Учет файловых вложений, загруженных через редактор.
//   - Генерация уникальных идентификаторов.
package dao

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/config"
	filestorage "github.com/aisa-it/aimail/aimail.go/internal/aimail/file-storage"
)

var Config *config.Config
var FileStorage filestorage.FileStorage

// GenID генерирует уникальный идентификатор в формате UUID.
// Не принимает параметров и возвращает строку, представляющую собой UUID.
func GenID() string {
	u2, _ := uuid.NewV4()
	return u2.String()
}

// GenUUID генерирует уникальный идентификатор в формате UUID. Не принимает параметров и возвращает UUID.
func GenUUID() uuid.UUID {
	u2, _ := uuid.NewV4()
	return u2
}

type FileAsset struct {
	Id          uuid.UUID `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	DraftId     *string   `json:"draft_id" gorm:"index"`
}

// Возвращает имя таблицы для данного типа структуры.
func (FileAsset) TableName() string { return "file_assets" }

// CreateFileAsset сохраняет запись о загруженном вложении.
func CreateFileAsset(db *gorm.DB, asset *FileAsset) error {
	if asset.Id == uuid.Nil {
		asset.Id = GenUUID()
	}
	asset.CreatedAt = time.Now()
	return db.Create(asset).Error
}

// GetFileAsset возвращает запись вложения по идентификатору.
func GetFileAsset(db *gorm.DB, id uuid.UUID) (*FileAsset, error) {
	var asset FileAsset
	if err := db.Where("id = ?", id).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// DeleteFileAsset удаляет запись вложения и сам файл из хранилища.
func DeleteFileAsset(db *gorm.DB, id uuid.UUID) error {
	if err := db.Delete(&FileAsset{}, "id = ?", id).Error; err != nil {
		return err
	}
	if FileStorage != nil {
		return FileStorage.Delete(id)
	}
	return nil
}
