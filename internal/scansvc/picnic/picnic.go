package picnic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	svcconfig "github.com/gpellegrino/scanner-services/internal/scansvc/config"
)

const helperTimeout = 15 * time.Second

// Client shells out to the Node Picnic helper. Keeping the subprocess behind
// this one-method type lets the orchestrator swap in a direct API client
// later without touching the scan flow.
type Client struct {
	cfg     svcconfig.Config
	timeout time.Duration
}

func NewClient(cfg svcconfig.Config) *Client {
	return &Client{cfg: cfg, timeout: helperTimeout}
}

type helperPayload struct {
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
	Title    string `json:"title,omitempty"`
}

// Sync adds the scanned product to the Picnic cart. It never returns an
// error: any failure comes back as (false, reason) and the scan continues.
func (c *Client) Sync(ctx context.Context, code, title string) (bool, string) {
	if !c.cfg.PicnicEnabled {
		return false, "Picnic integration disabled"
	}
	if !c.cfg.PicnicConfigured {
		return false, "Picnic integration not configured on server"
	}
	if _, err := os.Stat(c.cfg.PicnicHelperPath); err != nil {
		log.Warnf("picnic helper script missing at %s", c.cfg.PicnicHelperPath)
		return false, "Picnic helper not found"
	}

	payload, err := json.Marshal(helperPayload{Barcode: code, Quantity: 1, Title: title})
	if err != nil {
		return false, "Picnic helper failed"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.PicnicNodeBin, c.cfg.PicnicHelperPath, string(payload))
	cmd.WaitDelay = time.Second
	cmd.Env = c.helperEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		log.Errorf("picnic helper timed out for barcode %s", code)
		return false, "Picnic helper timed out"
	}

	out := strings.TrimSpace(stdout.String())
	errOut := strings.TrimSpace(stderr.String())

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// node binary itself missing or not runnable
			log.Errorf("unable to invoke picnic helper: %v", err)
			return false, "Node runtime not available"
		}

		message := "Picnic helper failed"
		raw := errOut
		if raw == "" {
			raw = out
		}
		if m := gjson.Get(raw, "message").String(); m != "" {
			message = m
		}
		log.Warnf("picnic helper exited with %d for barcode %s: %s", exitErr.ExitCode(), code, raw)
		return false, message
	}

	info := "Picnic cart updated"
	if m := gjson.Get(out, "message").String(); m != "" {
		info = m
	}
	log.Infof("picnic helper succeeded for %s: %s", code, out)
	return true, info
}

// helperEnv forwards only the Picnic settings on top of the parent env.
func (c *Client) helperEnv() []string {
	env := os.Environ()
	add := func(key, val string) {
		if val != "" {
			env = append(env, key+"="+val)
		}
	}
	add("PICNIC_USER", c.cfg.PicnicUser)
	add("PICNIC_PASSWORD", c.cfg.PicnicPassword)
	add("PICNIC_COUNTRY_CODE", c.cfg.PicnicCountryCode)
	add("PICNIC_API_URL", c.cfg.PicnicAPIURL)
	add("PICNIC_AUTH_KEY", c.cfg.PicnicAuthKey)
	return env
}
