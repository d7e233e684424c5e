package queue

const (
	TypeOCRProcess = "ocr:process"
)

type OCRProcessPayload struct {
	DocumentID string `json:"document_id"`
}
