package config

import (
	"os"
	"strings"
)

type Config struct {
	Port        string
	IngestToken string

	TasklistID    string
	TasklistTitle string

	PicnicUser        string
	PicnicPassword    string
	PicnicCountryCode string
	PicnicAPIURL      string
	PicnicAuthKey     string
	PicnicNodeBin     string
	PicnicHelperPath  string
	PicnicEnabled     bool
	PicnicConfigured  bool

	TesseractBin   string
	TesseractLangs string
}

func Load() Config {
	c := Config{
		Port:        getenv("PORT", "5000"),
		IngestToken: getenv("INGEST_TOKEN", "changeme"),

		TasklistID:    strings.TrimSpace(os.Getenv("TASKLIST_ID")),
		TasklistTitle: strings.TrimSpace(os.Getenv("TASKLIST_TITLE")),

		PicnicUser:        strings.TrimSpace(os.Getenv("PICNIC_USER")),
		PicnicPassword:    strings.TrimSpace(os.Getenv("PICNIC_PASSWORD")),
		PicnicCountryCode: strings.TrimSpace(os.Getenv("PICNIC_COUNTRY_CODE")),
		PicnicAPIURL:      strings.TrimSpace(os.Getenv("PICNIC_API_URL")),
		PicnicAuthKey:     strings.TrimSpace(os.Getenv("PICNIC_AUTH_KEY")),
		PicnicNodeBin:     getenv("PICNIC_NODE_BIN", "node"),
		PicnicHelperPath:  getenv("PICNIC_HELPER_PATH", "./picnic_client.mjs"),

		TesseractBin:   getenv("TESSERACT_BIN", "tesseract"),
		TesseractLangs: getenv("OCR_LANGS", "eng"),
	}

	flag := strings.ToLower(strings.TrimSpace(os.Getenv("PICNIC_ENABLED")))
	c.PicnicEnabled = flag == "1" || flag == "true" || flag == "yes" || flag == "on" ||
		c.PicnicAuthKey != "" ||
		(c.PicnicUser != "" && c.PicnicPassword != "")

	if c.PicnicEnabled {
		if _, err := os.Stat(c.PicnicHelperPath); err == nil {
			c.PicnicConfigured = true
		}
	}

	return c
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}
