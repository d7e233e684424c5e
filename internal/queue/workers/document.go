package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/justiceaid/docservice/internal/document"
	"github.com/justiceaid/docservice/internal/models"
	"github.com/justiceaid/docservice/internal/ocr"
	"github.com/justiceaid/docservice/internal/queue"
)

// RecordStore is the slice of the document store the worker drives the state
// machine through.
type RecordStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.DocumentRecord, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateProcessingResult(ctx context.Context, id uuid.UUID, text string, confidence float64) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// Extractor runs the full attempt-with-retries OCR pipeline on a stored file.
type Extractor interface {
	ExtractFromFile(ctx context.Context, path string, opts ocr.Options) (ocr.Result, error)
}

// PDFTextFunc extracts a PDF's native text layer, empty when there is none.
type PDFTextFunc func(path string) (string, error)

// OCRWorker moves a DocumentRecord through pending/processing into a terminal
// state. It is the only component that transitions records out of pending or
// processing; everything it learns is recorded on the document, never
// returned to a caller.
type OCRWorker struct {
	store     RecordStore
	extractor Extractor
	pdfText   PDFTextFunc
}

func NewOCRWorker(store RecordStore, extractor Extractor) *OCRWorker {
	return &OCRWorker{
		store:     store,
		extractor: extractor,
		pdfText:   document.ExtractPDFText,
	}
}

func (w *OCRWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.OCRProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}

	claimed, err := w.store.MarkProcessing(ctx, docID)
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		// Another run holds the record, or the id is gone. Either way this
		// task has nothing to do.
		slog.Info("document already processing, skipping", "document_id", docID)
		return nil
	}

	rec, err := w.store.GetByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	slog.Info("processing document", "document_id", docID, "language", rec.Language)

	text, confidence, procErr := w.extract(ctx, rec)
	if procErr != nil {
		if err := w.store.MarkFailed(ctx, docID, procErr.Error()); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		slog.Warn("document processing failed", "document_id", docID, "error", procErr)
		return nil
	}

	if err := w.store.UpdateProcessingResult(ctx, docID, text, confidence); err != nil {
		return fmt.Errorf("record result: %w", err)
	}

	slog.Info("document processed", "document_id", docID, "confidence", confidence)
	return nil
}

func (w *OCRWorker) extract(ctx context.Context, rec *models.DocumentRecord) (string, float64, error) {
	if rec.MimeType == "application/pdf" {
		return w.extractPDF(rec)
	}

	res, err := w.extractor.ExtractFromFile(ctx, rec.StoragePath, ocr.Options{Language: rec.Language})
	if err != nil {
		return "", 0, err
	}
	return res.Text, res.Confidence, nil
}

// extractPDF prefers the document's native text layer over OCR. PDFs without
// one are scans of individual pages, which this pipeline does not rasterize.
func (w *OCRWorker) extractPDF(rec *models.DocumentRecord) (string, float64, error) {
	text, err := w.pdfText(rec.StoragePath)
	if err != nil {
		return "", 0, err
	}
	if text == "" {
		return "", 0, fmt.Errorf("pdf has no extractable text layer")
	}
	return ocr.Clean(text), 100, nil
}
