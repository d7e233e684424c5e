package document

import "testing"

func TestPDFPageCountRejectsGarbage(t *testing.T) {
	if _, err := PDFPageCount([]byte("not a pdf at all")); err == nil {
		t.Fatal("expected an error for non-PDF input")
	}
}

func TestExtractPDFTextMissingFile(t *testing.T) {
	if _, err := ExtractPDFText("/nonexistent/brief.pdf"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
