package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gpellegrino/scanner-services/internal/scansvc/activity"
	"github.com/gpellegrino/scanner-services/internal/scansvc/barcode"
	svcconfig "github.com/gpellegrino/scanner-services/internal/scansvc/config"
	"github.com/gpellegrino/scanner-services/internal/scansvc/dedup"
	"github.com/gpellegrino/scanner-services/internal/scansvc/models"
)

// ProductLookup resolves a barcode to a display title/notes, degrading to the
// bare code on failure.
type ProductLookup interface {
	Lookup(code string) models.Product
}

// TaskSink is the external task-list service scans land on.
type TaskSink interface {
	InsertTask(ctx context.Context, title, notes string) error
}

// CartSync adds the scanned product to a grocery cart, best effort.
type CartSync interface {
	Sync(ctx context.Context, code, title string) (bool, string)
}

// Notifier receives every appended scan event, e.g. the websocket feed.
type Notifier interface {
	Broadcast(ev models.ScanEvent)
}

// ScanService composes normalization, dedup, lookup, task creation and the
// optional cart sync into one request/response cycle. It owns the dedup
// cache and the recent-activity log.
type ScanService struct {
	cfg    svcconfig.Config
	dedup  *dedup.Cache
	recent *activity.Log
	lookup ProductLookup
	sink   TaskSink
	cart   CartSync
	feed   Notifier
}

func NewScanService(cfg svcconfig.Config, lookup ProductLookup, sink TaskSink, cart CartSync, feed Notifier) *ScanService {
	return &ScanService{
		cfg:    cfg,
		dedup:  dedup.NewCache(dedup.DefaultCooldown),
		recent: activity.NewLog(),
		lookup: lookup,
		sink:   sink,
		cart:   cart,
		feed:   feed,
	}
}

// ScanInput carries everything the handler extracted from the request.
// ClientPicnicPref is nil when the client expressed no preference, in which
// case the server-side setting decides.
type ScanInput struct {
	RawCode          string
	Token            string
	ClientPicnicPref *bool
	RemoteAddr       string
}

// HandleScan runs the scan state machine and returns the response body plus
// the HTTP status to send it with.
func (s *ScanService) HandleScan(ctx context.Context, in ScanInput) (models.ScanResponse, int) {
	if in.Token != s.cfg.IngestToken {
		log.Infof("auth failed from %s: provided token len=%d. Hint: set INGEST_TOKEN in .env and enter the same value on the dashboard.",
			in.RemoteAddr, len(in.Token))
		return models.ScanResponse{OK: false, Message: "Unauthorized"}, http.StatusUnauthorized
	}

	raw := strings.TrimSpace(in.RawCode)
	log.Infof("received scan request from %s: %s", in.RemoteAddr, raw)
	if raw == "" {
		return models.ScanResponse{
			OK:            false,
			Message:       "Missing code",
			PicnicMessage: "Picnic sync skipped",
		}, http.StatusBadRequest
	}

	code := barcode.Normalize(raw)
	if s.dedup.IsRecentDuplicate(code) {
		log.Infof("duplicate detected for code %s - ignoring", code)
		s.logScan(code+" (dup ignored)", "Duplicate ignored")
		return models.ScanResponse{
			OK:            true,
			Message:       "Ignored duplicate: " + code,
			PicnicMessage: "Picnic sync skipped (duplicate)",
		}, http.StatusOK
	}

	product := s.lookup.Lookup(code)
	log.Infof("creating task for code %s with title '%s'", code, product.Title)
	if err := s.sink.InsertTask(ctx, product.Title, product.Notes); err != nil {
		log.Errorf("failed to create task for code %s: %v", code, err)
		return models.ScanResponse{
			OK:            false,
			Message:       "Failed to create Google Task. Check server logs and re-authenticate if needed.",
			PicnicMessage: "Picnic sync skipped",
		}, http.StatusInternalServerError
	}
	log.Infof("task created successfully for %s", code)
	s.logScan(code, product.Title)

	resp := models.ScanResponse{OK: true}
	if s.shouldSyncPicnic(in.ClientPicnicPref) {
		resp.PicnicOK, resp.PicnicMessage = s.cart.Sync(ctx, code, product.Title)
		resp.PicnicEnabled = true
	} else {
		resp.PicnicMessage = s.picnicSkipReason(in.ClientPicnicPref)
	}

	resp.Message = "Added task: " + product.Title
	if resp.PicnicEnabled {
		if resp.PicnicOK {
			resp.Message += " (Picnic cart updated)"
		} else {
			resp.Message += fmt.Sprintf(" (Picnic add failed: %s)", resp.PicnicMessage)
		}
	} else if s.cfg.PicnicEnabled {
		resp.Message += fmt.Sprintf(" (%s)", resp.PicnicMessage)
	}

	return resp, http.StatusOK
}

// shouldSyncPicnic applies the gating matrix: the per-request preference can
// narrow the server-side enablement but never widen it.
func (s *ScanService) shouldSyncPicnic(clientPref *bool) bool {
	if !s.cfg.PicnicConfigured {
		return false
	}
	if clientPref == nil {
		return s.cfg.PicnicEnabled
	}
	return s.cfg.PicnicEnabled && *clientPref
}

func (s *ScanService) picnicSkipReason(clientPref *bool) string {
	switch {
	case !s.cfg.PicnicConfigured:
		return "Picnic integration not configured on server"
	case s.cfg.PicnicEnabled && clientPref != nil && !*clientPref:
		return "Picnic sync disabled for this device"
	case s.cfg.PicnicEnabled:
		return "Picnic sync disabled"
	default:
		return "Picnic integration disabled"
	}
}

func (s *ScanService) logScan(code, title string) {
	ev := s.recent.Append(code, title)
	if s.feed != nil {
		s.feed.Broadcast(ev)
	}
}

// Recent returns the activity snapshot for /recent.
func (s *ScanService) Recent() []models.ScanEvent {
	return s.recent.Snapshot()
}

// Clear wipes the recent log and the dedup cache together so the operator
// can start fresh.
func (s *ScanService) Clear() {
	s.recent.Clear()
	s.dedup.Reset()
}

// ParseBoolPref interprets the lenient truthiness used by the scan clients:
// bools, numbers and the usual string spellings. Unrecognized input returns
// nil, meaning "use the server setting".
func ParseBoolPref(v interface{}) *bool {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return &t
	case float64:
		b := t != 0
		return &b
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			b := true
			return &b
		case "0", "false", "no", "off":
			b := false
			return &b
		}
	}
	return nil
}
