package ocr

import (
	"log/slog"

	"github.com/joseph-ayodele/vision-ocr/constants"
	"github.com/joseph-ayodele/vision-ocr/internal/common"
)

// NewRecognizer builds the provider selected by cfg.OCR.Provider.
func NewRecognizer(cfg *common.Config, logger *slog.Logger) (Recognizer, error) {
	switch cfg.OCR.Provider {
	case constants.ProviderAzure, "":
		return NewAzureClient(AzureConfig{
			Endpoint:     cfg.Vision.Endpoint,
			Key:          cfg.Vision.Key,
			Language:     cfg.Vision.Language,
			ReadingOrder: cfg.Vision.ReadingOrder,
			Timeout:      cfg.Vision.Timeout,
		}, logger), nil
	case constants.ProviderTesseract:
		return NewTesseractRecognizer(TesseractConfig{
			Binary:          cfg.OCR.Tesseract,
			Lang:            cfg.OCR.TesseractLang,
			TessdataDir:     cfg.OCR.TessdataDir,
			PSM:             cfg.OCR.TesseractPSM,
			OEM:             cfg.OCR.TesseractOEM,
			Pdftoppm:        cfg.OCR.Pdftoppm,
			DPI:             cfg.OCR.PdfDPI,
			MaxPages:        cfg.OCR.PdfMaxPages,
			DownloadTimeout: cfg.Vision.Timeout,
		}, logger), nil
	default:
		return nil, common.NewAppError(common.CodeConfig, "unknown OCR provider "+cfg.OCR.Provider, common.ErrInvalidInput, nil)
	}
}

// PollConfigFrom maps the env-driven poll settings onto PollConfig.
func PollConfigFrom(c common.PollConfig) PollConfig {
	return PollConfig{Interval: c.Interval, MaxAttempts: c.MaxAttempts, Timeout: c.Timeout}
}
