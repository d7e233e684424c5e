package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/justiceaid/docservice/internal/auth"
	"github.com/justiceaid/docservice/internal/document"
	"github.com/justiceaid/docservice/internal/models"
	"github.com/justiceaid/docservice/internal/ocr"
)

type fakeDocService struct {
	doc     *models.DocumentRecord
	docs    []models.DocumentRecord
	page    document.Pagination
	stats   document.Stats
	err     error
	lastReq document.UploadRequest

	reprocessLang string
	deletedID     uuid.UUID
	searchTerm    string
}

func (f *fakeDocService) Upload(ctx context.Context, req document.UploadRequest) (*models.DocumentRecord, error) {
	f.lastReq = req
	return f.doc, f.err
}

func (f *fakeDocService) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.DocumentRecord, error) {
	return f.doc, f.err
}

func (f *fakeDocService) List(ctx context.Context, ownerID uuid.UUID, opts document.ListOptions) ([]models.DocumentRecord, document.Pagination, error) {
	return f.docs, f.page, f.err
}

func (f *fakeDocService) Search(ctx context.Context, ownerID uuid.UUID, term string, opts document.ListOptions) ([]models.DocumentRecord, document.Pagination, error) {
	f.searchTerm = term
	return f.docs, f.page, f.err
}

func (f *fakeDocService) Reprocess(ctx context.Context, id, ownerID uuid.UUID, language string) (*models.DocumentRecord, error) {
	f.reprocessLang = language
	return f.doc, f.err
}

func (f *fakeDocService) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	f.deletedID = id
	return f.err
}

func (f *fakeDocService) Stats(ctx context.Context, ownerID *uuid.UUID) (document.Stats, error) {
	return f.stats, f.err
}

const testMaxUpload = 8 << 20

func authedRequest(t *testing.T, method, target string, body *bytes.Buffer, owner uuid.UUID) *http.Request {
	t.Helper()
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, body)
	}
	return r.WithContext(auth.WithOwner(r.Context(), owner))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestUploadRequiresAuth(t *testing.T) {
	h := NewDocumentHandler(&fakeDocService{}, testMaxUpload)

	w := httptest.NewRecorder()
	h.Upload(w, httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
}

func TestUploadCreates(t *testing.T) {
	svc := &fakeDocService{doc: &models.DocumentRecord{
		ID:          uuid.New(),
		OCRStatus:   models.OCRStatusPending,
		StoragePath: "/data/uploads/created.png",
	}}
	h := NewDocumentHandler(svc, testMaxUpload)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "scan.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte("fake image bytes"))
	mw.WriteField("document_type", models.DocTypeContract)
	mw.WriteField("language", "fra")
	mw.Close()

	r := authedRequest(t, http.MethodPost, "/api/v1/documents", &buf, uuid.New())
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	h.Upload(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201: %s", w.Code, w.Body.String())
	}
	if svc.lastReq.OriginalFilename != "scan.png" {
		t.Fatalf("filename %q", svc.lastReq.OriginalFilename)
	}
	if svc.lastReq.DocumentType != models.DocTypeContract || svc.lastReq.Language != "fra" {
		t.Fatalf("form fields not forwarded: %+v", svc.lastReq)
	}
	if strings.Contains(w.Body.String(), "storage_path") || strings.Contains(w.Body.String(), "created.png") {
		t.Fatal("storage path leaked in the create response")
	}
}

func TestUploadUnsupportedLanguage(t *testing.T) {
	svc := &fakeDocService{err: ocr.ErrUnsupportedLanguage}
	h := NewDocumentHandler(svc, testMaxUpload)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "scan.png")
	fw.Write([]byte("x"))
	mw.Close()

	r := authedRequest(t, http.MethodPost, "/api/v1/documents", &buf, uuid.New())
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	h.Upload(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestGetNotFound(t *testing.T) {
	h := NewDocumentHandler(&fakeDocService{err: document.ErrNotFound}, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents/x", nil, uuid.New())
	r = withURLParam(r, "id", uuid.New().String())

	w := httptest.NewRecorder()
	h.Get(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestGetInvalidID(t *testing.T) {
	h := NewDocumentHandler(&fakeDocService{}, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents/banana", nil, uuid.New())
	r = withURLParam(r, "id", "banana")

	w := httptest.NewRecorder()
	h.Get(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestGetHidesStoragePath(t *testing.T) {
	doc := &models.DocumentRecord{ID: uuid.New(), StoragePath: "/data/uploads/secret.png"}
	h := NewDocumentHandler(&fakeDocService{doc: doc}, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents/x", nil, uuid.New())
	r = withURLParam(r, "id", doc.ID.String())

	w := httptest.NewRecorder()
	h.Get(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "secret.png") {
		t.Fatal("storage path leaked in response")
	}
}

func TestTextCompleted(t *testing.T) {
	doc := &models.DocumentRecord{
		ID:            uuid.New(),
		OCRStatus:     models.OCRStatusCompleted,
		ExtractedText: "lease agreement between the parties",
		Confidence:    91,
		IsProcessed:   true,
	}
	h := NewDocumentHandler(&fakeDocService{doc: doc}, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents/x/text", nil, uuid.New())
	r = withURLParam(r, "id", doc.ID.String())

	w := httptest.NewRecorder()
	h.Text(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["extracted_text"] != doc.ExtractedText {
		t.Fatalf("text %v", body["extracted_text"])
	}
	if body["word_count"].(float64) != 5 {
		t.Fatalf("word_count %v, want 5", body["word_count"])
	}
}

func TestTextPendingIsAccepted(t *testing.T) {
	doc := &models.DocumentRecord{ID: uuid.New(), OCRStatus: models.OCRStatusPending}
	h := NewDocumentHandler(&fakeDocService{doc: doc}, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents/x/text", nil, uuid.New())
	r = withURLParam(r, "id", doc.ID.String())

	w := httptest.NewRecorder()
	h.Text(w, r)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d, want 202", w.Code)
	}
}

func TestTextFailedCarriesMessage(t *testing.T) {
	msg := "pdf has no extractable text layer"
	doc := &models.DocumentRecord{ID: uuid.New(), OCRStatus: models.OCRStatusFailed, OCRErrorMessage: &msg}
	h := NewDocumentHandler(&fakeDocService{doc: doc}, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents/x/text", nil, uuid.New())
	r = withURLParam(r, "id", doc.ID.String())

	w := httptest.NewRecorder()
	h.Text(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["error_message"] != msg {
		t.Fatalf("error_message %v", body["error_message"])
	}
}

func TestSearchRequiresTerm(t *testing.T) {
	h := NewDocumentHandler(&fakeDocService{}, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents/search?q=+", nil, uuid.New())
	w := httptest.NewRecorder()
	h.Search(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestSearchForwardsTerm(t *testing.T) {
	svc := &fakeDocService{docs: []models.DocumentRecord{}, page: document.Pagination{CurrentPage: 1, TotalPages: 1}}
	h := NewDocumentHandler(svc, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents/search?q=tenancy", nil, uuid.New())
	w := httptest.NewRecorder()
	h.Search(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	if svc.searchTerm != "tenancy" {
		t.Fatalf("term %q", svc.searchTerm)
	}
}

func TestListRejectsBadFilters(t *testing.T) {
	h := NewDocumentHandler(&fakeDocService{}, testMaxUpload)

	r := authedRequest(t, http.MethodGet, "/api/v1/documents?document_type=screenplay", nil, uuid.New())
	w := httptest.NewRecorder()
	h.List(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400 for bad document_type", w.Code)
	}

	r = authedRequest(t, http.MethodGet, "/api/v1/documents?ocr_status=exploded", nil, uuid.New())
	w = httptest.NewRecorder()
	h.List(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400 for bad ocr_status", w.Code)
	}
}

func TestReprocessAccepted(t *testing.T) {
	doc := &models.DocumentRecord{ID: uuid.New(), OCRStatus: models.OCRStatusProcessing}
	svc := &fakeDocService{doc: doc}
	h := NewDocumentHandler(svc, testMaxUpload)

	body := bytes.NewBufferString(`{"language":"deu"}`)
	r := authedRequest(t, http.MethodPost, "/api/v1/documents/x/reprocess", body, uuid.New())
	r = withURLParam(r, "id", doc.ID.String())

	w := httptest.NewRecorder()
	h.Reprocess(w, r)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d, want 202", w.Code)
	}
	if svc.reprocessLang != "deu" {
		t.Fatalf("language %q not forwarded", svc.reprocessLang)
	}
	out := decodeBody(t, w)
	if out["status"] != models.OCRStatusProcessing {
		t.Fatalf("status %v, want processing", out["status"])
	}
}

func TestDelete(t *testing.T) {
	svc := &fakeDocService{}
	h := NewDocumentHandler(svc, testMaxUpload)

	id := uuid.New()
	r := authedRequest(t, http.MethodDelete, "/api/v1/documents/x", nil, uuid.New())
	r = withURLParam(r, "id", id.String())

	w := httptest.NewRecorder()
	h.Delete(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	if svc.deletedID != id {
		t.Fatalf("deleted %v, want %v", svc.deletedID, id)
	}
}

func TestLanguages(t *testing.T) {
	h := NewDocumentHandler(&fakeDocService{}, testMaxUpload)

	w := httptest.NewRecorder()
	h.Languages(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents/languages", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["default"] != ocr.DefaultLanguage {
		t.Fatalf("default %v", body["default"])
	}
	if langs, ok := body["languages"].([]interface{}); !ok || len(langs) == 0 {
		t.Fatalf("languages %v", body["languages"])
	}
}
