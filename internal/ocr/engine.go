package ocr

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is the language assumed when a record carries none.
const DefaultLanguage = "eng"

// charWhitelist restricts recognition to characters that occur in legal
// paperwork, suppressing noise glyphs from stamps and scan artifacts.
const charWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 .,;:!?'\"()[]{}-/@#$%&*+=<>"

var supportedLanguages = []string{
	"eng", "spa", "fra", "deu", "ita", "por", "rus",
	"chi_sim", "chi_tra", "jpn", "kor", "ara", "hin",
}

// SupportedLanguages returns the Tesseract language codes this service accepts.
func SupportedLanguages() []string {
	return append([]string(nil), supportedLanguages...)
}

// LanguageSupported reports whether code is in the supported set.
func LanguageSupported(code string) bool {
	for _, l := range supportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// ValidateLanguage returns ErrUnsupportedLanguage for codes outside the
// supported set. An empty code is rejected too; callers apply the default
// before reaching the engine.
func ValidateLanguage(code string) error {
	if !LanguageSupported(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return nil
}

// Options carries per-recognition engine parameters.
type Options struct {
	Language    string
	PageSegMode int
	EngineMode  int
}

const (
	defaultPageSegMode = 3 // fully automatic page segmentation
	defaultEngineMode  = 3 // default, based on what is available
)

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.PageSegMode == 0 {
		o.PageSegMode = defaultPageSegMode
	}
	if o.EngineMode == 0 {
		o.EngineMode = defaultEngineMode
	}
	return o
}

// Result is the outcome of a single recognition pass.
type Result struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	SymbolCount    int     `json:"symbol_count"`
	WordCount      int     `json:"word_count"`
	LineCount      int     `json:"line_count"`
	ParagraphCount int     `json:"paragraph_count"`
	BlockCount     int     `json:"block_count"`
}

// Engine recognizes text in a normalized image buffer.
type Engine interface {
	Recognize(ctx context.Context, image []byte, opts Options) (Result, error)
}

// TesseractEngine backs Engine with the gosseract client.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

// Recognize runs Tesseract over the image. The call honors ctx cancellation
// and deadline; a timeout surfaces as ErrExtractionFailed.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := ValidateLanguage(opts.Language); err != nil {
		return Result{}, err
	}

	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := e.recognize(image, opts)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, ctx.Err())
	case out := <-ch:
		if out.err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, out.err)
		}
		return out.res, nil
	}
}

func (e *TesseractEngine) recognize(image []byte, opts Options) (Result, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(opts.Language); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
		return Result{}, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := c.SetVariable(gosseract.SettableVariable("tessedit_ocr_engine_mode"), strconv.Itoa(opts.EngineMode)); err != nil {
		return Result{}, fmt.Errorf("set engine mode: %w", err)
	}
	if err := c.SetWhitelist(charWhitelist); err != nil {
		return Result{}, fmt.Errorf("set whitelist: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	res := Result{Text: strings.TrimSpace(text)}
	res.WordCount, res.Confidence = wordStats(c)
	res.SymbolCount = countBoxes(c, gosseract.RIL_SYMBOL)
	res.LineCount = countBoxes(c, gosseract.RIL_TEXTLINE)
	res.ParagraphCount = countBoxes(c, gosseract.RIL_PARA)
	res.BlockCount = countBoxes(c, gosseract.RIL_BLOCK)
	return res, nil
}

// wordStats returns the word count and the mean word confidence rounded to
// the nearest integer on the 0-100 scale.
func wordStats(c *gosseract.Client) (int, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0, 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return len(boxes), math.Round(sum / float64(len(boxes)))
}

func countBoxes(c *gosseract.Client, level gosseract.PageIteratorLevel) int {
	boxes, err := c.GetBoundingBoxes(level)
	if err != nil {
		return 0
	}
	return len(boxes)
}
