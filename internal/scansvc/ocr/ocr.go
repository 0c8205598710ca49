package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const extractTimeout = 30 * time.Second

// Engine extracts text from uploaded images by piping them through the
// tesseract binary. The binary path and default language hints come from the
// service config.
type Engine struct {
	bin     string
	langs   string
	timeout time.Duration
}

func NewEngine(bin, langs string) *Engine {
	return &Engine{bin: bin, langs: langs, timeout: extractTimeout}
}

// Extract runs OCR over the image and returns the recognized plain text.
// langs overrides the configured language hints when non-empty
// (tesseract syntax, e.g. "eng+deu").
func (e *Engine) Extract(ctx context.Context, image []byte, langs string) (string, error) {
	if langs == "" {
		langs = e.langs
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.bin, "stdin", "stdout", "-l", langs)
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("ocr timed out after %s", e.timeout)
		}
		log.Errorf("tesseract failed: %v: %s", err, strings.TrimSpace(stderr.String()))
		return "", fmt.Errorf("ocr engine failed: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
