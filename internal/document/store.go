package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/justiceaid/docservice/internal/models"
)

// ErrNotFound covers both a missing id and an id owned by someone else, so
// id-scoped reads never leak existence.
var ErrNotFound = errors.New("document not found")

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists DocumentRecords. All user-facing reads are owner-scoped;
// state transitions operate by id only and are single-statement conditional
// updates so concurrent writers cannot lose updates.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

const recordColumns = `id, owner_id, original_filename, storage_filename, storage_path,
	remote_url, remote_public_id, mime_type, size_bytes, document_type, language,
	page_count, ocr_status, confidence, extracted_text, ocr_error_message,
	is_processed, processed_at, created_at, updated_at`

// projectionColumns omits the raw storage path from user-facing list and
// search results.
const projectionColumns = `id, owner_id, original_filename, storage_filename, ''::text,
	remote_url, NULL::text, mime_type, size_bytes, document_type, language,
	page_count, ocr_status, confidence, extracted_text, ocr_error_message,
	is_processed, processed_at, created_at, updated_at`

func scanRecord(row pgx.Row) (*models.DocumentRecord, error) {
	var d models.DocumentRecord
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.OriginalFilename, &d.StorageFilename, &d.StoragePath,
		&d.RemoteURL, &d.RemotePublicID, &d.MimeType, &d.SizeBytes, &d.DocumentType, &d.Language,
		&d.PageCount, &d.OCRStatus, &d.Confidence, &d.ExtractedText, &d.OCRErrorMessage,
		&d.IsProcessed, &d.ProcessedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

// Create inserts a new record in the pending state.
func (s *Store) Create(ctx context.Context, d *models.DocumentRecord) (*models.DocumentRecord, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Language == "" {
		d.Language = "eng"
	}
	if d.DocumentType == "" {
		d.DocumentType = models.DocTypeOther
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO documents (id, owner_id, original_filename, storage_filename, storage_path,
			remote_url, remote_public_id, mime_type, size_bytes, document_type, language, page_count, ocr_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+recordColumns,
		d.ID, d.OwnerID, d.OriginalFilename, d.StorageFilename, d.StoragePath,
		d.RemoteURL, d.RemotePublicID, d.MimeType, d.SizeBytes, d.DocumentType, d.Language,
		d.PageCount, models.OCRStatusPending,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return rec, nil
}

// Get returns the record if it exists and belongs to ownerID.
func (s *Store) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.DocumentRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	return scanRecord(row)
}

// GetByID loads a record without owner scoping. It is reserved for the
// processing worker, which holds ids handed to it by the upload path.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*models.DocumentRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE id = $1`, id)
	return scanRecord(row)
}

// ListOptions filter and page an owner's documents.
type ListOptions struct {
	Page         int
	PageSize     int
	DocumentType string
	OCRStatus    string
	SortBy       string
	SortOrder    string
}

// Pagination describes the page of results returned by List and SearchByText.
type Pagination struct {
	CurrentPage    int  `json:"current_page"`
	TotalPages     int  `json:"total_pages"`
	TotalDocuments int  `json:"total_documents"`
	HasNext        bool `json:"has_next"`
	HasPrev        bool `json:"has_prev"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var sortColumns = map[string]string{
	"created_at":        "created_at",
	"updated_at":        "updated_at",
	"confidence":        "confidence",
	"size":              "size_bytes",
	"original_filename": "original_filename",
}

func (o *ListOptions) normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = defaultPageSize
	}
	if o.PageSize > maxPageSize {
		o.PageSize = maxPageSize
	}
	if _, ok := sortColumns[o.SortBy]; !ok {
		o.SortBy = "created_at"
	}
	if o.SortOrder != "asc" {
		o.SortOrder = "desc"
	}
}

func (o ListOptions) offset() int {
	return (o.Page - 1) * o.PageSize
}

func paginate(total, page, pageSize int) Pagination {
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}
	return Pagination{
		CurrentPage:    page,
		TotalPages:     totalPages,
		TotalDocuments: total,
		HasNext:        page < totalPages,
		HasPrev:        page > 1,
	}
}

// List returns a page of the owner's documents, storage path excluded.
func (s *Store) List(ctx context.Context, ownerID uuid.UUID, opts ListOptions) ([]models.DocumentRecord, Pagination, error) {
	opts.normalize()

	where := []string{"owner_id = $1"}
	args := []any{ownerID}
	if opts.DocumentType != "" {
		args = append(args, opts.DocumentType)
		where = append(where, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if opts.OCRStatus != "" {
		args = append(args, opts.OCRStatus)
		where = append(where, fmt.Sprintf("ocr_status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM documents WHERE "+cond, args...,
	).Scan(&total); err != nil {
		return nil, Pagination{}, fmt.Errorf("count documents: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM documents WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		projectionColumns, cond, sortColumns[opts.SortBy], strings.ToUpper(opts.SortOrder),
		len(args)+1, len(args)+2,
	)
	args = append(args, opts.PageSize, opts.offset())

	docs, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, Pagination{}, err
	}
	return docs, paginate(total, opts.Page, opts.PageSize), nil
}

// SearchByText returns processed documents whose extracted text contains term,
// case-insensitively.
func (s *Store) SearchByText(ctx context.Context, ownerID uuid.UUID, term string, opts ListOptions) ([]models.DocumentRecord, Pagination, error) {
	opts.normalize()

	where := []string{"owner_id = $1", "is_processed = TRUE", "extracted_text ILIKE $2"}
	args := []any{ownerID, "%" + escapeLike(term) + "%"}
	if opts.DocumentType != "" {
		args = append(args, opts.DocumentType)
		where = append(where, fmt.Sprintf("document_type = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM documents WHERE "+cond, args...,
	).Scan(&total); err != nil {
		return nil, Pagination{}, fmt.Errorf("count search results: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM documents WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		projectionColumns, cond, len(args)+1, len(args)+2,
	)
	args = append(args, opts.PageSize, opts.offset())

	docs, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, Pagination{}, err
	}
	return docs, paginate(total, opts.Page, opts.PageSize), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]models.DocumentRecord, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []models.DocumentRecord{}
	for rows.Next() {
		d, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// MarkProcessing claims the record for a processing run. The claim succeeds
// only when the record is not already processing; result fields from a
// previous run are reset so the record re-enters the state machine cleanly.
// It returns false when another run holds the record or the id is unknown.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents
		 SET ocr_status = $2, is_processed = FALSE, confidence = 0,
		     extracted_text = '', ocr_error_message = NULL, processed_at = NULL,
		     updated_at = now()
		 WHERE id = $1 AND ocr_status <> $2`,
		id, models.OCRStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateProcessingResult records a successful extraction and moves the record
// to completed.
func (s *Store) UpdateProcessingResult(ctx context.Context, id uuid.UUID, text string, confidence float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents
		 SET ocr_status = $2, extracted_text = $3, confidence = $4,
		     is_processed = TRUE, ocr_error_message = NULL, processed_at = now(),
		     updated_at = now()
		 WHERE id = $1 AND ocr_status = $5`,
		id, models.OCRStatusCompleted, text, confidence, models.OCRStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update processing result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failed extraction and moves the record to failed.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents
		 SET ocr_status = $2, ocr_error_message = $3, is_processed = FALSE,
		     extracted_text = '', confidence = 0, updated_at = now()
		 WHERE id = $1 AND ocr_status = $4`,
		id, models.OCRStatusFailed, message, models.OCRStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLanguage changes the OCR language used by subsequent processing runs.
func (s *Store) SetLanguage(ctx context.Context, id uuid.UUID, language string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET language = $2, updated_at = now() WHERE id = $1`,
		id, language,
	)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the record and returns it so the caller can release the
// underlying files.
func (s *Store) Delete(ctx context.Context, id, ownerID uuid.UUID) (*models.DocumentRecord, error) {
	row := s.db.QueryRow(ctx,
		`DELETE FROM documents WHERE id = $1 AND owner_id = $2 RETURNING `+recordColumns,
		id, ownerID,
	)
	return scanRecord(row)
}

// StatusStats aggregates one processing state.
type StatusStats struct {
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Stats summarizes an owner's documents per processing state. A nil ownerID
// aggregates across all owners.
type Stats struct {
	Total    int                    `json:"total"`
	ByStatus map[string]StatusStats `json:"by_status"`
}

func (s *Store) Stats(ctx context.Context, ownerID *uuid.UUID) (Stats, error) {
	query := `SELECT ocr_status, COUNT(*), COALESCE(AVG(confidence), 0)
		 FROM documents GROUP BY ocr_status`
	args := []any{}
	if ownerID != nil {
		query = `SELECT ocr_status, COUNT(*), COALESCE(AVG(confidence), 0)
		 FROM documents WHERE owner_id = $1 GROUP BY ocr_status`
		args = append(args, *ownerID)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{ByStatus: map[string]StatusStats{}}
	for rows.Next() {
		var status string
		var st StatusStats
		if err := rows.Scan(&status, &st.Count, &st.AvgConfidence); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByStatus[status] = st
		stats.Total += st.Count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}
