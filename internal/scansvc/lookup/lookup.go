package lookup

import (
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/gpellegrino/scanner-services/internal/scansvc/models"
)

const defaultBaseURL = "https://world.openfoodfacts.org"

// Client asks Open Food Facts for a human-friendly product name. Every
// failure degrades to the bare barcode as title, never an error, so the
// scan flow stays linear.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

func NewClient() *Client {
	return NewClientWithBaseURL(defaultBaseURL)
}

func NewClientWithBaseURL(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.HTTPClient.Timeout = 3 * time.Second
	rc.Logger = stdlog.New(io.Discard, "", 0)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
	}
}

// Lookup returns the display title and notes for code. Fallback on any
// failure is (code, "").
func (c *Client) Lookup(code string) models.Product {
	fallback := models.Product{Title: code}

	resp, err := c.http.Get(fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, code))
	if err != nil {
		log.Warnf("product lookup failed for %s: %v", code, err)
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnf("product lookup for %s returned status %d", code, resp.StatusCode)
		return fallback
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Warnf("product lookup read failed for %s: %v", code, err)
		return fallback
	}

	j := gjson.ParseBytes(body)
	if j.Get("status").Int() != 1 {
		return fallback
	}

	p := j.Get("product")
	name := strings.TrimSpace(p.Get("product_name").String())
	brand := strings.TrimSpace(strings.SplitN(p.Get("brands").String(), ",", 2)[0])

	var parts []string
	if brand != "" {
		parts = append(parts, brand)
	}
	if name != "" {
		parts = append(parts, name)
	}
	title := strings.Join(parts, " - ")
	if title == "" {
		title = code
	}

	notes := "Barcode: " + code
	if q := p.Get("quantity").String(); q != "" {
		notes += "\nQuantity: " + q
	}
	if cat := p.Get("categories").String(); cat != "" {
		notes += "\nCategories: " + cat
	}
	if img := p.Get("image_url").String(); img != "" {
		notes += "\nImage: " + img
	}

	return models.Product{Title: title, Notes: notes}
}
