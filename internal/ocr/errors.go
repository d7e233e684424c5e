package ocr

import "errors"

var (
	// ErrPreprocessingFailed indicates the input image could not be decoded
	// or transformed into an OCR-ready buffer.
	ErrPreprocessingFailed = errors.New("image preprocessing failed")

	// ErrUnsupportedLanguage indicates a language code outside the supported set.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrExtractionFailed indicates the OCR backend failed, timed out, or
	// exhausted all attempts.
	ErrExtractionFailed = errors.New("text extraction failed")
)
