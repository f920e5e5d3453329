package aimail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/apierrors"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/dao"
	filestorage "github.com/aisa-it/aimail/aimail.go/internal/aimail/file-storage"
)

// draftAssetStore сохраняет ассеты движка редактирования в файловое
// хранилище и регистрирует их за черновиком.
type draftAssetStore struct {
	db      *gorm.DB
	storage filestorage.FileStorage
	webURL  *url.URL
	draftID string
}

func (st *draftAssetStore) SaveAsset(ctx context.Context, name uuid.UUID, contentType string, data []byte) (*url.URL, error) {
	if err := st.storage.Save(data, name, contentType, &filestorage.Metadata{
		DraftId:  st.draftID,
		UploadId: name.String(),
	}); err != nil {
		return nil, err
	}

	asset := dao.FileAsset{
		Id:          name,
		Name:        name.String(),
		ContentType: contentType,
		Size:        int64(len(data)),
		DraftId:     &st.draftID,
	}
	if err := dao.CreateFileAsset(st.db, &asset); err != nil {
		return nil, err
	}
	return st.webURL.JoinPath("api", "file", name.String()), nil
}

func (s *Services) AddAssetServices(g *echo.Group) {
	assetGroup := g.Group("drafts/:draftId/", s.DraftMiddleware)
	assetGroup.POST("assets/", s.createDraftAsset)

	g.GET("file/:fileId/", s.getAssetFile)
}

// createDraftAsset godoc
// @id createDraftAsset
// @Summary Drafts (вложения): загрузка вложения
// @Description Загружает файл и прикрепляет его к черновику
// @Tags Drafts
// @Accept multipart/form-data
// @Produce json
// @Param draftId path string true "Id черновика"
// @Param asset formData file true "Файл для загрузки"
// @Success 201 {object} map[string]string "URL загруженного файла"
// @Failure 400 {object} apierrors.DefinedError "Некорректные параметры запроса"
// @Failure 404 {object} apierrors.DefinedError "Черновик не найден"
// @Failure 413 {object} apierrors.DefinedError "Файл слишком большой"
// @Router /api/drafts/{draftId}/assets/ [post]
func (s *Services) createDraftAsset(c echo.Context) error {
	draft := c.(DraftContext).Draft

	asset, err := c.FormFile("asset")
	if err != nil {
		return EError(c, err)
	}
	if asset.Size > apierrors.AssetMaxSizeMB<<20 {
		return EErrorDefined(c, apierrors.ErrAssetTooLarge)
	}

	assetSrc, err := asset.Open()
	if err != nil {
		return EError(c, err)
	}
	defer assetSrc.Close()

	fileName := asset.Filename
	if decodedFilename, err := url.QueryUnescape(asset.Filename); err == nil {
		fileName = decodedFilename
	}

	assetId := dao.GenUUID()
	if err := s.storage.SaveReader(
		assetSrc,
		asset.Size,
		assetId,
		asset.Header.Get("Content-Type"),
		&filestorage.Metadata{
			DraftId:     draft.Id,
			AuthorEmail: draft.AuthorEmail,
		},
	); err != nil {
		slog.Error("Save draft asset", "draftId", draft.Id, "err", err)
		return EErrorDefined(c, apierrors.ErrAssetUploadFailed)
	}

	fa := dao.FileAsset{
		Id:          assetId,
		Name:        fileName,
		ContentType: asset.Header.Get("Content-Type"),
		Size:        asset.Size,
		DraftId:     &draft.Id,
	}
	if err := dao.CreateFileAsset(s.db, &fa); err != nil {
		return EError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"image_url": cfg.WebURL.JoinPath("api", "file", assetId.String()).String(),
	})
}

// getAssetFile godoc
// @id getAssetFile
// @Summary Files: получение файла
// @Description Отдает содержимое загруженного файла
// @Tags Files
// @Param fileId path string true "Id файла"
// @Success 200 {file} binary "Содержимое файла"
// @Failure 404 {object} apierrors.DefinedError "Файл не найден"
// @Router /api/file/{fileId}/ [get]
func (s *Services) getAssetFile(c echo.Context) error {
	fileId, err := uuid.FromString(c.Param("fileId"))
	if err != nil {
		return EErrorDefined(c, apierrors.ErrInvalidID)
	}

	info, err := s.storage.GetFileInfo(fileId)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return EErrorDefined(c, apierrors.ErrAssetNotFound)
		}
		return EError(c, err)
	}

	reader, err := s.storage.LoadReader(fileId)
	if err != nil {
		return EError(c, err)
	}
	defer reader.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, reader)
}

// cleanOrphanAssets удаляет вложения, черновики которых уже удалены.
// Выполняется по расписанию.
func (s *Services) cleanOrphanAssets() {
	var orphans []dao.FileAsset
	if err := s.db.
		Where("draft_id IS NOT NULL").
		Where("draft_id NOT IN (?)", s.db.Model(&dao.Draft{}).Select("id")).
		Find(&orphans).Error; err != nil {
		slog.Error("Find orphan assets", "err", err)
		return
	}

	for _, asset := range orphans {
		if err := s.db.Delete(&asset).Error; err != nil {
			slog.Error("Delete orphan asset record", "assetId", asset.Id, "err", err)
			continue
		}
		if err := s.storage.Delete(asset.Id); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Error("Delete orphan asset file", "assetId", asset.Id, "err", err)
		}
	}
	if len(orphans) > 0 {
		slog.Info("Orphan assets cleaned", "count", len(orphans))
	}
}
