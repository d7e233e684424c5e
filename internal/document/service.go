package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justiceaid/docservice/internal/cache"
	"github.com/justiceaid/docservice/internal/models"
	"github.com/justiceaid/docservice/internal/ocr"
	"github.com/justiceaid/docservice/internal/queue"
	"github.com/justiceaid/docservice/internal/storage"
)

var (
	// ErrUnsupportedMediaType rejects uploads outside the image/PDF set.
	ErrUnsupportedMediaType = errors.New("unsupported file type")

	// ErrInvalidDocumentType rejects unknown document classifications.
	ErrInvalidDocumentType = errors.New("invalid document type")
)

var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/bmp":       true,
	"image/webp":      true,
	"image/tiff":      true,
	"application/pdf": true,
}

// TaskEnqueuer schedules background OCR work. Satisfied by queue.Client.
type TaskEnqueuer interface {
	EnqueueOCRProcess(payload queue.OCRProcessPayload) error
}

const statsCacheTTL = 30 * time.Second

// Service owns document uploads, queries, reprocessing, and deletion. OCR
// itself happens in the background worker; the service only creates records
// and schedules work.
type Service struct {
	store  *Store
	local  storage.LocalStore
	remote storage.RemoteStore
	tasks  TaskEnqueuer
	cache  *cache.Cache
}

// NewService wires the document service. remote and c may be nil when the
// deployment runs without remote mirroring or a cache.
func NewService(store *Store, local storage.LocalStore, remote storage.RemoteStore, tasks TaskEnqueuer, c *cache.Cache) *Service {
	return &Service{store: store, local: local, remote: remote, tasks: tasks, cache: c}
}

// Store exposes the record store for read-only query handlers.
func (s *Service) Store() *Store {
	return s.store
}

type UploadRequest struct {
	OwnerID          uuid.UUID
	OriginalFilename string
	DocumentType     string
	Language         string
	Data             io.Reader
}

// Upload validates the request, persists the file, creates the pending
// record, and schedules extraction. Validation failures abort before any
// record exists.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.DocumentRecord, error) {
	lang := req.Language
	if lang == "" {
		lang = ocr.DefaultLanguage
	}
	if err := ocr.ValidateLanguage(lang); err != nil {
		return nil, err
	}

	docType := req.DocumentType
	if docType == "" {
		docType = models.DocTypeOther
	}
	if !models.ValidDocumentType(docType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocumentType, req.DocumentType)
	}

	storageName := generateFilename(req.OriginalFilename)
	saved, err := s.local.Save(ctx, storageName, req.Data)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	mimeType := resolveMime(saved.MimeType, req.OriginalFilename)
	if !allowedMimeTypes[mimeType] {
		if rmErr := s.local.Remove(saved.Path); rmErr != nil {
			slog.Warn("failed to remove rejected upload", "path", saved.Path, "error", rmErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mimeType)
	}

	pageCount := 0
	if mimeType == "application/pdf" {
		data, err := os.ReadFile(saved.Path)
		if err == nil {
			pageCount, err = PDFPageCount(data)
		}
		if err != nil {
			if rmErr := s.local.Remove(saved.Path); rmErr != nil {
				slog.Warn("failed to remove rejected upload", "path", saved.Path, "error", rmErr)
			}
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
		}
	}

	rec := &models.DocumentRecord{
		OwnerID:          req.OwnerID,
		OriginalFilename: req.OriginalFilename,
		StorageFilename:  storageName,
		StoragePath:      saved.Path,
		MimeType:         mimeType,
		SizeBytes:        saved.SizeBytes,
		DocumentType:     docType,
		Language:         lang,
		PageCount:        pageCount,
	}

	if s.remote != nil {
		obj, err := s.remote.Upload(ctx, saved.Path)
		if err != nil {
			slog.Warn("remote mirror failed, keeping local copy only", "error", err)
		} else {
			rec.RemoteURL = &obj.URL
			rec.RemotePublicID = &obj.PublicID
		}
	}

	created, err := s.store.Create(ctx, rec)
	if err != nil {
		if rmErr := s.local.Remove(saved.Path); rmErr != nil {
			slog.Warn("failed to remove orphaned upload", "path", saved.Path, "error", rmErr)
		}
		return nil, err
	}

	if err := s.tasks.EnqueueOCRProcess(queue.OCRProcessPayload{DocumentID: created.ID.String()}); err != nil {
		// The record stays pending; a reprocess request recovers it.
		slog.Error("failed to enqueue ocr task", "document_id", created.ID, "error", err)
	}

	return created, nil
}

// Get returns an owner's record by id.
func (s *Service) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.DocumentRecord, error) {
	return s.store.Get(ctx, id, ownerID)
}

// List pages an owner's documents.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, opts ListOptions) ([]models.DocumentRecord, Pagination, error) {
	return s.store.List(ctx, ownerID, opts)
}

// Search finds processed documents whose text contains term.
func (s *Service) Search(ctx context.Context, ownerID uuid.UUID, term string, opts ListOptions) ([]models.DocumentRecord, Pagination, error) {
	return s.store.SearchByText(ctx, ownerID, term, opts)
}

// Reprocess schedules a fresh extraction run for a terminal record. A record
// already processing is left alone; the request is idempotent from the
// caller's perspective.
func (s *Service) Reprocess(ctx context.Context, id, ownerID uuid.UUID, language string) (*models.DocumentRecord, error) {
	rec, err := s.store.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if language != "" && language != rec.Language {
		if err := ocr.ValidateLanguage(language); err != nil {
			return nil, err
		}
		if err := s.store.SetLanguage(ctx, id, language); err != nil {
			return nil, err
		}
		rec.Language = language
	}

	if rec.OCRStatus == models.OCRStatusProcessing {
		return rec, nil
	}

	if err := s.tasks.EnqueueOCRProcess(queue.OCRProcessPayload{DocumentID: id.String()}); err != nil {
		return nil, fmt.Errorf("enqueue reprocess: %w", err)
	}
	rec.OCRStatus = models.OCRStatusProcessing
	return rec, nil
}

// Delete removes the record and releases its stored files. Record deletion is
// the success criterion; storage cleanup failures are logged, never escalated.
func (s *Service) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	rec, err := s.store.Delete(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if rec.StoragePath != "" {
		if err := s.local.Remove(rec.StoragePath); err != nil {
			slog.Warn("failed to remove local file", "document_id", id, "error", err)
		}
	}
	if s.remote != nil && rec.RemotePublicID != nil {
		if err := s.remote.Delete(ctx, *rec.RemotePublicID); err != nil {
			slog.Warn("failed to delete remote object", "document_id", id, "error", err)
		}
	}
	return nil
}

// Stats aggregates the owner's documents per status, cached briefly to keep
// dashboard polling off the database.
func (s *Service) Stats(ctx context.Context, ownerID *uuid.UUID) (Stats, error) {
	key := "docstats:all"
	if ownerID != nil {
		key = "docstats:" + ownerID.String()
	}

	if s.cache != nil {
		var cached Stats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	stats, err := s.store.Stats(ctx, ownerID)
	if err != nil {
		return Stats{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, statsCacheTTL); err != nil {
			slog.Warn("failed to cache stats", "error", err)
		}
	}
	return stats, nil
}

// generateFilename builds a globally unique storage filename that keeps the
// original extension.
func generateFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if len(ext) > 8 {
		ext = ""
	}
	return uuid.New().String() + ext
}

// extMimeTypes covers extensions http.DetectContentType cannot sniff and the
// platform mime table may not carry.
var extMimeTypes = map[string]string{
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
}

// resolveMime prefers the content sniffed from the file itself, falling back
// to the extension for types the sniffer does not know (TIFF in particular).
func resolveMime(sniffed, filename string) string {
	base, _, err := mime.ParseMediaType(sniffed)
	if err == nil && base != "application/octet-stream" {
		return base
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if mt, ok := extMimeTypes[ext]; ok {
		return mt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if base, _, err := mime.ParseMediaType(byExt); err == nil {
			return base
		}
	}
	return sniffed
}
