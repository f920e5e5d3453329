package aimail

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/apierrors"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/config"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/dao"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/convert"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/dispatch"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
	filestorage "github.com/aisa-it/aimail/aimail.go/internal/aimail/file-storage"
)

const sessionIdleTimeout = 30 * time.Minute

// DraftContext - контекст запроса с загруженным черновиком.
type DraftContext struct {
	echo.Context
	Draft dao.Draft
}

// draftSession держит живой движок редактирования одного черновика.
type draftSession struct {
	editor   *editor.Editor
	lastUsed time.Time
}

// SessionRegistry - реестр живых сессий редактирования. Сессия создается
// лениво при первом обращении к движку черновика и закрывается по
// простою либо при удалении черновика.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*draftSession

	db      *gorm.DB
	storage filestorage.FileStorage
	cfg     *config.Config
}

func NewSessionRegistry(db *gorm.DB, storage filestorage.FileStorage, cfg *config.Config) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*draftSession),
		db:       db,
		storage:  storage,
		cfg:      cfg,
	}
}

// Acquire возвращает движок черновика, создавая сессию при необходимости.
func (r *SessionRegistry) Acquire(draft *dao.Draft) (*editor.Editor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[draft.Id]; ok {
		s.lastUsed = time.Now()
		return s.editor, nil
	}

	draftID := draft.Id
	ed := editor.New(editor.Options{
		Store: &draftAssetStore{
			db:      r.db,
			storage: r.storage,
			webURL:  r.cfg.WebURL,
			draftID: draftID,
		},
		OnBodyChange: func(html string) {
			if err := dao.UpdateDraftHTML(r.db, draftID, html); err != nil {
				slog.Error("Cache draft body html", "draftId", draftID, "err", err)
			}
		},
		OnUploadError: func(filename string, err error) {
			slog.Warn("Draft upload failed", "draftId", draftID, "filename", filename, "err", err)
		},
		OnFilesDropped: func(files []dispatch.File) {
			slog.Info("Non-image files dropped", "draftId", draftID, "count", len(files))
		},
		ExportDelay: time.Duration(r.cfg.ExportDelayMs) * time.Millisecond,
	})
	<-ed.Ready()

	if len(draft.Blocks) > 0 {
		if err := ed.LoadDocument(draft.Blocks); err != nil {
			ed.Close()
			return nil, err
		}
	}

	r.sessions[draft.Id] = &draftSession{editor: ed, lastUsed: time.Now()}
	return ed, nil
}

// Persist сохраняет блочное представление и HTML экспорт черновика.
func (r *SessionRegistry) Persist(draftID string) error {
	r.mu.Lock()
	s, ok := r.sessions[draftID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	data, err := s.editor.Document()
	if err != nil {
		return err
	}
	return dao.UpdateDraftBody(r.db, draftID, data, s.editor.Body())
}

// Close закрывает сессию черновика, предварительно сохранив его.
func (r *SessionRegistry) Close(draftID string) {
	r.mu.Lock()
	s, ok := r.sessions[draftID]
	delete(r.sessions, draftID)
	r.mu.Unlock()
	if !ok {
		return
	}
	s.editor.Close()
}

// CloseIdle закрывает сессии, к которым давно не обращались.
func (r *SessionRegistry) CloseIdle() {
	r.mu.Lock()
	var stale []string
	for id, s := range r.sessions {
		if time.Since(s.lastUsed) > sessionIdleTimeout {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		if err := r.Persist(id); err != nil {
			slog.Error("Persist idle draft session", "draftId", id, "err", err)
		}
		r.Close(id)
	}
}

// CloseAll сохраняет и закрывает все сессии. Вызывается на остановке сервиса.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.Persist(id); err != nil {
			slog.Error("Persist draft session on shutdown", "draftId", id, "err", err)
		}
		r.Close(id)
	}
}

// SweepUploads переводит в ошибку зависшие загрузки всех живых сессий.
func (r *SessionRegistry) SweepUploads() {
	maxAge := time.Duration(r.cfg.UploadMaxAgeMin) * time.Minute

	r.mu.Lock()
	editors := make([]*editor.Editor, 0, len(r.sessions))
	for _, s := range r.sessions {
		editors = append(editors, s.editor)
	}
	r.mu.Unlock()

	for _, ed := range editors {
		ed.SweepUploads(maxAge)
	}
}

// DraftMiddleware загружает черновик по :draftId в контекст запроса.
func (s *Services) DraftMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		draft, err := dao.GetDraft(s.db, c.Param("draftId"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return EErrorDefined(c, apierrors.ErrDraftNotFound)
			}
			return EError(c, err)
		}
		return next(DraftContext{c, *draft})
	}
}

func (s *Services) AddDraftServices(g *echo.Group) {
	g.POST("drafts/", s.createDraft)
	g.GET("drafts/", s.getDraftList)

	draftGroup := g.Group("drafts/:draftId/", s.DraftMiddleware)
	draftGroup.GET("", s.getDraft)
	draftGroup.PUT("", s.updateDraft)
	draftGroup.DELETE("", s.deleteDraft)
	draftGroup.POST("clear/", s.clearDraftContent)
	draftGroup.POST("blocks/", s.insertDraftBlocks)
	draftGroup.POST("rewrite/", s.rewriteDraftText)
}

type createDraftRequest struct {
	Title       string `json:"title" validate:"draftTitle"`
	To          string `json:"to" validate:"omitempty,email"`
	AuthorEmail string `json:"author_email" validate:"omitempty,email"`
}

// createDraft godoc
// @id createDraft
// @Summary Drafts: создание черновика
// @Description Создает пустой черновик письма
// @Tags Drafts
// @Accept json
// @Produce json
// @Param data body createDraftRequest true "Данные черновика"
// @Success 201 {object} dao.Draft "Созданный черновик"
// @Failure 400 {object} apierrors.DefinedError "Некорректные параметры запроса"
// @Router /api/drafts/ [post]
func (s *Services) createDraft(c echo.Context) error {
	var req createDraftRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrDraftBadRequest)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrDraftValidate)
	}

	draft := dao.Draft{
		Title:       req.Title,
		To:          req.To,
		AuthorEmail: req.AuthorEmail,
	}
	if err := dao.CreateDraft(s.db, &draft); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusCreated, draft)
}

// getDraftList godoc
// @id getDraftList
// @Summary Drafts: список черновиков
// @Description Возвращает черновики, отсортированные по времени изменения
// @Tags Drafts
// @Produce json
// @Param author query string false "Email автора"
// @Param limit query int false "Размер страницы" default(25)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} map[string]interface{} "Страница черновиков"
// @Router /api/drafts/ [get]
func (s *Services) getDraftList(c echo.Context) error {
	limit := 25
	offset := 0
	echo.QueryParamsBinder(c).Int("limit", &limit).Int("offset", &offset)
	if limit > 100 {
		return EErrorDefined(c, apierrors.ErrLimitTooHigh)
	}
	if limit < 1 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	drafts, count, err := dao.GetDraftList(s.db, c.QueryParam("author"), limit, offset)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   count,
		"limit":   limit,
		"offset":  offset,
		"results": drafts,
	})
}

// getDraft godoc
// @id getDraft
// @Summary Drafts: получение черновика
// @Description Возвращает черновик с блоками и HTML экспортом
// @Tags Drafts
// @Produce json
// @Param draftId path string true "Id черновика"
// @Success 200 {object} dao.Draft "Черновик"
// @Failure 404 {object} apierrors.DefinedError "Черновик не найден"
// @Router /api/drafts/{draftId}/ [get]
func (s *Services) getDraft(c echo.Context) error {
	return c.JSON(http.StatusOK, c.(DraftContext).Draft)
}

type updateDraftRequest struct {
	Title  *string         `json:"title" validate:"omitempty,draftTitle"`
	To     *string         `json:"to" validate:"omitempty,email"`
	Blocks json.RawMessage `json:"blocks"`
}

// updateDraft godoc
// @id updateDraft
// @Summary Drafts: обновление черновика
// @Description Обновляет заголовок, получателя и тело черновика. Тело принимается версионированным JSON нод
// @Tags Drafts
// @Accept json
// @Produce json
// @Param draftId path string true "Id черновика"
// @Param data body updateDraftRequest true "Изменения"
// @Success 200 {object} dao.Draft "Обновленный черновик"
// @Failure 400 {object} apierrors.DefinedError "Некорректные параметры запроса"
// @Failure 404 {object} apierrors.DefinedError "Черновик не найден"
// @Router /api/drafts/{draftId}/ [put]
func (s *Services) updateDraft(c echo.Context) error {
	draft := c.(DraftContext).Draft

	var req updateDraftRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrDraftBadRequest)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrDraftValidate)
	}

	if req.Title != nil {
		draft.Title = *req.Title
	}
	if req.To != nil {
		draft.To = *req.To
	}

	if req.Blocks != nil {
		// валидация формы нод происходит при загрузке в движок
		ed, err := s.sessions.Acquire(&draft)
		if err != nil {
			return EError(c, err)
		}
		if err := ed.LoadDocument(req.Blocks); err != nil {
			return EErrorDefined(c, apierrors.ErrEditorBadContent)
		}
		if draft.Blocks, err = ed.Document(); err != nil {
			return EError(c, err)
		}
		draft.BodyHTML = ed.Body()
	}

	if err := dao.UpsertDraft(s.db, &draft); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, draft)
}

// deleteDraft godoc
// @id deleteDraft
// @Summary Drafts: удаление черновика
// @Description Удаляет черновик вместе с вложениями
// @Tags Drafts
// @Param draftId path string true "Id черновика"
// @Success 204 "Черновик удален"
// @Failure 404 {object} apierrors.DefinedError "Черновик не найден"
// @Router /api/drafts/{draftId}/ [delete]
func (s *Services) deleteDraft(c echo.Context) error {
	draft := c.(DraftContext).Draft

	s.sessions.Close(draft.Id)
	if err := dao.DeleteDraft(s.db, draft.Id); err != nil {
		return EError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// clearDraftContent godoc
// @id clearDraftContent
// @Summary Drafts: очистка тела черновика
// @Description Приводит тело черновика к единственному пустому параграфу
// @Tags Drafts
// @Produce json
// @Param draftId path string true "Id черновика"
// @Success 200 {object} dao.Draft "Очищенный черновик"
// @Failure 404 {object} apierrors.DefinedError "Черновик не найден"
// @Router /api/drafts/{draftId}/clear/ [post]
func (s *Services) clearDraftContent(c echo.Context) error {
	draft := c.(DraftContext).Draft

	ed, err := s.sessions.Acquire(&draft)
	if err != nil {
		return EError(c, err)
	}
	if err := ed.ClearContent(); err != nil {
		return EError(c, err)
	}
	if err := s.sessions.Persist(draft.Id); err != nil {
		return EError(c, err)
	}

	updated, err := dao.GetDraft(s.db, draft.Id)
	if err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

type insertBlocksRequest struct {
	HTML   string                `json:"html"`
	Text   string                `json:"text"`
	Blocks []convert.ParsedBlock `json:"blocks"`
	After  string                `json:"after" validate:"nodeKey"`
}

// insertDraftBlocks godoc
// @id insertDraftBlocks
// @Summary Drafts: вставка контента
// @Description Вставляет HTML, простой текст или готовые блоки после заданной ноды либо в конец тела
// @Tags Drafts
// @Accept json
// @Produce json
// @Param draftId path string true "Id черновика"
// @Param data body insertBlocksRequest true "Вставляемый контент"
// @Success 200 {array} convert.ParsedBlock "Блоки тела после вставки"
// @Failure 400 {object} apierrors.DefinedError "Некорректные параметры запроса"
// @Failure 404 {object} apierrors.DefinedError "Черновик не найден"
// @Router /api/drafts/{draftId}/blocks/ [post]
func (s *Services) insertDraftBlocks(c echo.Context) error {
	draft := c.(DraftContext).Draft

	var req insertBlocksRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrDraftBadRequest)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrEditorBadKey)
	}

	blocks := req.Blocks
	switch {
	case req.HTML != "":
		blocks = convert.ImportHTML(req.HTML)
	case req.Text != "":
		blocks = convert.ImportText(req.Text)
	}
	if len(blocks) == 0 {
		return EErrorDefined(c, apierrors.ErrEditorBadContent)
	}

	ed, err := s.sessions.Acquire(&draft)
	if err != nil {
		return EError(c, err)
	}

	var after *nodes.Key
	if req.After != "" {
		key := nodes.Key(req.After)
		after = &key
	}
	if err := ed.InsertBlocks(blocks, after); err != nil {
		return EErrorDefined(c, apierrors.ErrEditorBadKey)
	}
	if err := s.sessions.Persist(draft.Id); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, ed.GetBlocks())
}

type rewriteRequest struct {
	Prompt string `json:"prompt"`
	Text   string `json:"text"`
	After  string `json:"after" validate:"nodeKey"`
}

// rewriteDraftText godoc
// @id rewriteDraftText
// @Summary Drafts: переписывание текста
// @Description Переписывает фрагмент письма через сервис генерации и вставляет результат в тело
// @Tags Drafts
// @Accept json
// @Produce json
// @Param draftId path string true "Id черновика"
// @Param data body rewriteRequest true "Инструкция и фрагмент"
// @Success 200 {array} convert.ParsedBlock "Блоки тела после вставки"
// @Failure 400 {object} apierrors.DefinedError "Пустой запрос"
// @Failure 403 {object} apierrors.DefinedError "Функции генерации отключены"
// @Failure 502 {object} apierrors.DefinedError "Сервис генерации недоступен"
// @Router /api/drafts/{draftId}/rewrite/ [post]
func (s *Services) rewriteDraftText(c echo.Context) error {
	draft := c.(DraftContext).Draft

	if !s.ai.Enabled() {
		return EErrorDefined(c, apierrors.ErrAIDisabled)
	}

	var req rewriteRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrDraftBadRequest)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrEditorBadKey)
	}
	if req.Prompt == "" {
		return EErrorDefined(c, apierrors.ErrAIEmptyPrompt)
	}

	html, err := s.ai.Rewrite(c.Request().Context(), req.Prompt, req.Text)
	if err != nil {
		slog.Error("AI rewrite", "draftId", draft.Id, "err", err)
		return EErrorDefined(c, apierrors.ErrAIUnavailable)
	}

	ed, err := s.sessions.Acquire(&draft)
	if err != nil {
		return EError(c, err)
	}

	var after *nodes.Key
	if req.After != "" {
		key := nodes.Key(req.After)
		after = &key
	}
	if err := ed.InsertLLMContent(html, after); err != nil {
		return EErrorDefined(c, apierrors.ErrEditorBadKey)
	}
	if err := s.sessions.Persist(draft.Id); err != nil {
		return EError(c, err)
	}
	return c.JSON(http.StatusOK, ed.GetBlocks())
}
