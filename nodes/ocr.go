package nodes

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/visiona/camflow"
	"github.com/visiona/camflow/internal/imgcodec"
)

// OCRConfig tunes text recognition.
type OCRConfig struct {
	// Language is the tesseract language pack, defaults to "eng".
	Language string
	// Whitelist restricts recognition to the listed characters.
	// Empty means unrestricted.
	Whitelist string
	// Classes restricts OCR to regions whose detection has one of these
	// class IDs. Empty means every region is read.
	Classes []int
}

// OCR runs tesseract over each cropped region and collects one text per
// region, index-aligned with the region list. Regions that read as empty
// produce an empty string, keeping the alignment.
type OCR struct {
	client  *gosseract.Client
	classes map[int]bool
}

// NewOCR creates an OCR node with a dedicated tesseract client. Close
// must be called to release it.
func NewOCR(cfg OCRConfig) (*OCR, error) {
	client := gosseract.NewClient()
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("ocr: set language %q: %w", lang, err)
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("ocr: set whitelist: %w", err)
		}
	}
	var classes map[int]bool
	if len(cfg.Classes) > 0 {
		classes = make(map[int]bool, len(cfg.Classes))
		for _, c := range cfg.Classes {
			classes[c] = true
		}
	}
	return &OCR{client: client, classes: classes}, nil
}

func (o *OCR) Name() string              { return "ocr" }
func (o *OCR) Provides() []camflow.Field { return []camflow.Field{camflow.FieldOCR} }

func (o *OCR) Process(pkt *camflow.FramePacket) error {
	if len(pkt.Regions) == 0 {
		pkt.OCRTexts = nil
		return nil
	}

	texts := make([]string, len(pkt.Regions))
	for i := range pkt.Regions {
		if o.classes != nil {
			det := pkt.Detections[pkt.Regions[i].DetectionIndex]
			if !o.classes[det.ClassID] {
				continue
			}
		}
		png, err := imgcodec.EncodePNG(pkt.Regions[i].Image)
		if err != nil {
			return fmt.Errorf("ocr: encode region %d: %w", i, err)
		}
		if err := o.client.SetImageFromBytes(png); err != nil {
			return fmt.Errorf("ocr: load region %d: %w", i, err)
		}
		text, err := o.client.Text()
		if err != nil {
			return fmt.Errorf("ocr: read region %d: %w", i, err)
		}
		texts[i] = strings.TrimSpace(text)
	}

	pkt.OCRTexts = texts
	return nil
}

func (o *OCR) Close() error { return o.client.Close() }
