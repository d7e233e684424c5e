package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentRecord tracks one uploaded file through the OCR pipeline.
type DocumentRecord struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	OwnerID          uuid.UUID  `json:"owner_id" db:"owner_id"`
	OriginalFilename string     `json:"original_filename" db:"original_filename"`
	StorageFilename  string     `json:"storage_filename" db:"storage_filename"`
	StoragePath      string     `json:"storage_path,omitempty" db:"storage_path"`
	RemoteURL        *string    `json:"remote_url,omitempty" db:"remote_url"`
	RemotePublicID   *string    `json:"-" db:"remote_public_id"`
	MimeType         string     `json:"mime_type" db:"mime_type"`
	SizeBytes        int64      `json:"size_bytes" db:"size_bytes"`
	DocumentType     string     `json:"document_type" db:"document_type"`
	Language         string     `json:"language" db:"language"`
	PageCount        int        `json:"page_count,omitempty" db:"page_count"`
	OCRStatus        string     `json:"ocr_status" db:"ocr_status"`
	Confidence       float64    `json:"confidence" db:"confidence"`
	ExtractedText    string     `json:"extracted_text,omitempty" db:"extracted_text"`
	OCRErrorMessage  *string    `json:"ocr_error_message,omitempty" db:"ocr_error_message"`
	IsProcessed      bool       `json:"is_processed" db:"is_processed"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

const (
	OCRStatusPending    = "pending"
	OCRStatusProcessing = "processing"
	OCRStatusCompleted  = "completed"
	OCRStatusFailed     = "failed"
)

const (
	DocTypeLegalDocument  = "legal_document"
	DocTypeContract       = "contract"
	DocTypeCertificate    = "certificate"
	DocTypeIdentification = "identification"
	DocTypeOther          = "other"
)

// ValidDocumentType reports whether t is one of the known document types.
func ValidDocumentType(t string) bool {
	switch t {
	case DocTypeLegalDocument, DocTypeContract, DocTypeCertificate, DocTypeIdentification, DocTypeOther:
		return true
	}
	return false
}

// ValidOCRStatus reports whether s is a known processing state.
func ValidOCRStatus(s string) bool {
	switch s {
	case OCRStatusPending, OCRStatusProcessing, OCRStatusCompleted, OCRStatusFailed:
		return true
	}
	return false
}
