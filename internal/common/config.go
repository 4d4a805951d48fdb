package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/vision-ocr/constants"
)

// SampleImageURL is the printed-text sample from the Azure samples repository.
const SampleImageURL = "https://raw.githubusercontent.com/Azure-Samples/cognitive-services-sample-data-files/master/ComputerVision/Images/printed_text.jpg"

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Vision   VisionConfig
	OCR      OCRConfig
	Poll     PollConfig
	LogLevel slog.Level
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN         string
	DialTimeout time.Duration
	BusyTimeout time.Duration
}

// VisionConfig holds the cloud Read API settings. Key and Endpoint are
// forwarded as-is; an empty value fails at the first request, not here.
type VisionConfig struct {
	Endpoint     string
	Key          string
	Language     string
	ReadingOrder string
	Timeout      time.Duration
}

// OCRConfig holds provider selection and local tesseract settings
type OCRConfig struct {
	Provider      string
	ImageURL      string
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	TesseractPSM  int
	TesseractOEM  int
	Pdftoppm      string
	PdfDPI        int
	PdfMaxPages   int
}

// PollConfig bounds the wait for a recognition job.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:         getEnv("DB_URL", "ocr_data.db"),
			DialTimeout: getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			BusyTimeout: getEnvAsDuration("DB_BUSY_TIMEOUT", 5*time.Second),
		},
		Vision: VisionConfig{
			Endpoint:     getEnv("VISION_ENDPOINT", ""),
			Key:          getEnv("VISION_KEY", ""),
			Language:     getEnv("VISION_LANGUAGE", ""),
			ReadingOrder: getEnv("VISION_READING_ORDER", ""),
			Timeout:      getEnvAsDuration("VISION_TIMEOUT", 30*time.Second),
		},
		OCR: OCRConfig{
			Provider:      strings.ToLower(getEnv("OCR_PROVIDER", constants.ProviderAzure)),
			ImageURL:      getEnv("OCR_IMAGE_URL", SampleImageURL),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			TesseractPSM:  getEnvAsInt("TESSERACT_PSM", 0),
			TesseractOEM:  getEnvAsInt("TESSERACT_OEM", 0),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			PdfDPI:        getEnvAsInt("PDF_DPI", 300),
			PdfMaxPages:   getEnvAsInt("PDF_MAX_PAGES", 0),
		},
		Poll: PollConfig{
			Interval:    getEnvAsDuration("POLL_INTERVAL", time.Second),
			MaxAttempts: getEnvAsInt("POLL_MAX_ATTEMPTS", 120),
			Timeout:     getEnvAsDuration("POLL_TIMEOUT", 2*time.Minute),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("DB_URL", c.Database.DSN, Required).
		Field("DB_DIAL_TIMEOUT", c.Database.DialTimeout, NonNegative).
		Field("DB_BUSY_TIMEOUT", c.Database.BusyTimeout, NonNegative).
		Field("OCR_PROVIDER", c.OCR.Provider, OneOf(constants.Providers...)).
		Field("OCR_IMAGE_URL", c.OCR.ImageURL, ImageSource).
		Field("POLL_INTERVAL", c.Poll.Interval, Positive).
		Field("POLL_MAX_ATTEMPTS", c.Poll.MaxAttempts, NonNegative).
		Field("POLL_TIMEOUT", c.Poll.Timeout, NonNegative)
	if c.OCR.Provider == constants.ProviderTesseract {
		v.Field("TESSERACT_BIN", c.OCR.Tesseract, Required).
			Field("TESSERACT_PSM", c.OCR.TesseractPSM, NonNegative).
			Field("TESSERACT_OEM", c.OCR.TesseractOEM, NonNegative).
			Field("PDF_DPI", c.OCR.PdfDPI, NonNegative).
			Field("PDF_MAX_PAGES", c.OCR.PdfMaxPages, NonNegative)
	}
	return v.Err(CodeConfig)
}
