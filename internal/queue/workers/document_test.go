package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/justiceaid/docservice/internal/models"
	"github.com/justiceaid/docservice/internal/ocr"
	"github.com/justiceaid/docservice/internal/queue"
)

type fakeStore struct {
	rec *models.DocumentRecord

	claimed       bool
	claimCalls    int
	resultText    string
	resultConf    float64
	resultCalled  bool
	failedMessage string
	failedCalled  bool
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.DocumentRecord, error) {
	if f.rec == nil {
		return nil, errors.New("no record")
	}
	return f.rec, nil
}

func (f *fakeStore) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	f.claimCalls++
	return f.claimed, nil
}

func (f *fakeStore) UpdateProcessingResult(ctx context.Context, id uuid.UUID, text string, confidence float64) error {
	f.resultCalled = true
	f.resultText = text
	f.resultConf = confidence
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	f.failedCalled = true
	f.failedMessage = message
	return nil
}

type fakeExtractor struct {
	res   ocr.Result
	err   error
	calls int
	path  string
	opts  ocr.Options
}

func (f *fakeExtractor) ExtractFromFile(ctx context.Context, path string, opts ocr.Options) (ocr.Result, error) {
	f.calls++
	f.path = path
	f.opts = opts
	return f.res, f.err
}

func ocrTask(t *testing.T, id uuid.UUID) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(queue.OCRProcessPayload{DocumentID: id.String()})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(queue.TypeOCRProcess, payload)
}

func imageRecord(id uuid.UUID) *models.DocumentRecord {
	return &models.DocumentRecord{
		ID:          id,
		MimeType:    "image/png",
		StoragePath: "/data/uploads/scan.png",
		Language:    "spa",
		OCRStatus:   models.OCRStatusProcessing,
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{rec: imageRecord(id), claimed: true}
	ext := &fakeExtractor{res: ocr.Result{Text: "sentencia firme", Confidence: 88}}
	w := NewOCRWorker(store, ext)

	if err := w.ProcessTask(context.Background(), ocrTask(t, id)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if !store.resultCalled {
		t.Fatal("result never recorded")
	}
	if store.resultText != "sentencia firme" || store.resultConf != 88 {
		t.Fatalf("recorded %q/%v", store.resultText, store.resultConf)
	}
	if store.failedCalled {
		t.Fatal("MarkFailed called on success")
	}
	if ext.path != "/data/uploads/scan.png" {
		t.Fatalf("extracted from %q", ext.path)
	}
	if ext.opts.Language != "spa" {
		t.Fatalf("language %q, want the record's", ext.opts.Language)
	}
}

func TestProcessTaskExtractionFailure(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{rec: imageRecord(id), claimed: true}
	ext := &fakeExtractor{err: errors.New("image unreadable")}
	w := NewOCRWorker(store, ext)

	// Extraction failures are terminal on the record, not retryable tasks.
	if err := w.ProcessTask(context.Background(), ocrTask(t, id)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if !store.failedCalled {
		t.Fatal("MarkFailed never called")
	}
	if store.failedMessage != "image unreadable" {
		t.Fatalf("failure message %q", store.failedMessage)
	}
	if store.resultCalled {
		t.Fatal("result recorded despite failure")
	}
}

func TestProcessTaskSkipsUnclaimedRecord(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{rec: imageRecord(id), claimed: false}
	ext := &fakeExtractor{}
	w := NewOCRWorker(store, ext)

	if err := w.ProcessTask(context.Background(), ocrTask(t, id)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if ext.calls != 0 {
		t.Fatal("extractor ran without a claim")
	}
	if store.resultCalled || store.failedCalled {
		t.Fatal("state written without a claim")
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	w := NewOCRWorker(&fakeStore{}, &fakeExtractor{})

	if err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeOCRProcess, []byte("{"))); err == nil {
		t.Fatal("expected an error for malformed payload")
	}
	if err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeOCRProcess, []byte(`{"document_id":"nope"}`))); err == nil {
		t.Fatal("expected an error for a bad document id")
	}
}

func TestProcessTaskPDFTextLayer(t *testing.T) {
	id := uuid.New()
	rec := imageRecord(id)
	rec.MimeType = "application/pdf"
	store := &fakeStore{rec: rec, claimed: true}
	ext := &fakeExtractor{}
	w := NewOCRWorker(store, ext)
	w.pdfText = func(path string) (string, error) {
		return "IN THE MATTER OF the tenancy agreement dated 3 May", nil
	}

	if err := w.ProcessTask(context.Background(), ocrTask(t, id)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if ext.calls != 0 {
		t.Fatal("OCR ran on a PDF with a text layer")
	}
	if !store.resultCalled || store.resultConf != 100 {
		t.Fatalf("text layer result not recorded: called=%v conf=%v", store.resultCalled, store.resultConf)
	}
	if store.resultText == "" {
		t.Fatal("empty text recorded")
	}
}

func TestProcessTaskPDFWithoutTextLayer(t *testing.T) {
	id := uuid.New()
	rec := imageRecord(id)
	rec.MimeType = "application/pdf"
	store := &fakeStore{rec: rec, claimed: true}
	w := NewOCRWorker(store, &fakeExtractor{})
	w.pdfText = func(path string) (string, error) { return "", nil }

	if err := w.ProcessTask(context.Background(), ocrTask(t, id)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if !store.failedCalled {
		t.Fatal("scanned PDF did not fail the record")
	}
}
