package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/justiceaid/docservice/internal/auth"
	"github.com/justiceaid/docservice/internal/document"
	"github.com/justiceaid/docservice/internal/models"
	"github.com/justiceaid/docservice/internal/ocr"
)

// DocumentService is the service surface the HTTP layer consumes.
type DocumentService interface {
	Upload(ctx context.Context, req document.UploadRequest) (*models.DocumentRecord, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*models.DocumentRecord, error)
	List(ctx context.Context, ownerID uuid.UUID, opts document.ListOptions) ([]models.DocumentRecord, document.Pagination, error)
	Search(ctx context.Context, ownerID uuid.UUID, term string, opts document.ListOptions) ([]models.DocumentRecord, document.Pagination, error)
	Reprocess(ctx context.Context, id, ownerID uuid.UUID, language string) (*models.DocumentRecord, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	Stats(ctx context.Context, ownerID *uuid.UUID) (document.Stats, error)
}

type DocumentHandler struct {
	svc            DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(svc DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	doc, err := h.svc.Upload(r.Context(), document.UploadRequest{
		OwnerID:          ownerID,
		OriginalFilename: header.Filename,
		DocumentType:     r.FormValue("document_type"),
		Language:         r.FormValue("language"),
		Data:             file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The raw filesystem path never leaves the service.
	doc.StoragePath = ""
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	docs, page, err := h.svc.List(r.Context(), ownerID, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "pagination": page})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.ownedID(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.Get(r.Context(), id, ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The raw filesystem path never leaves the service.
	doc.StoragePath = ""
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.ownedID(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.Get(r.Context(), id, ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id":   doc.ID,
		"status":        doc.OCRStatus,
		"confidence":    doc.Confidence,
		"is_processed":  doc.IsProcessed,
		"processed_at":  doc.ProcessedAt,
		"error_message": doc.OCRErrorMessage,
	})
}

func (h *DocumentHandler) Text(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.ownedID(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.Get(r.Context(), id, ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch doc.OCRStatus {
	case models.OCRStatusCompleted:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"document_id":    doc.ID,
			"status":         doc.OCRStatus,
			"extracted_text": doc.ExtractedText,
			"confidence":     doc.Confidence,
			"word_count":     len(strings.Fields(doc.ExtractedText)),
			"char_count":     len([]rune(doc.ExtractedText)),
		})
	case models.OCRStatusFailed:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"document_id":   doc.ID,
			"status":        doc.OCRStatus,
			"error_message": doc.OCRErrorMessage,
		})
	default:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"document_id": doc.ID,
			"status":      doc.OCRStatus,
			"message":     "extraction has not completed yet",
		})
	}
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "search term required"})
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	docs, page, err := h.svc.Search(r.Context(), ownerID, term, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "pagination": page})
}

func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.ownedID(w, r)
	if !ok {
		return
	}

	var body struct {
		Language string `json:"language"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	doc, err := h.svc.Reprocess(r.Context(), id, ownerID, body.Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"document_id": doc.ID,
		"status":      models.OCRStatusProcessing,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.ownedID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, ownerID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	stats, err := h.svc.Stats(r.Context(), &ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *DocumentHandler) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"languages": ocr.SupportedLanguages(),
		"default":   ocr.DefaultLanguage,
	})
}

func (h *DocumentHandler) ownedID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return uuid.Nil, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, id, true
}

func listOptionsFromQuery(r *http.Request) (document.ListOptions, error) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	opts := document.ListOptions{
		Page:         page,
		PageSize:     pageSize,
		DocumentType: q.Get("document_type"),
		OCRStatus:    q.Get("ocr_status"),
		SortBy:       q.Get("sort_by"),
		SortOrder:    q.Get("sort_order"),
	}

	if opts.DocumentType != "" && !models.ValidDocumentType(opts.DocumentType) {
		return opts, errors.New("invalid document_type filter")
	}
	if opts.OCRStatus != "" && !models.ValidOCRStatus(opts.OCRStatus) {
		return opts, errors.New("invalid ocr_status filter")
	}
	return opts, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
	case errors.Is(err, ocr.ErrUnsupportedLanguage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, document.ErrInvalidDocumentType):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, document.ErrUnsupportedMediaType):
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
