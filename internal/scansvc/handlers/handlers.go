package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	svcconfig "github.com/gpellegrino/scanner-services/internal/scansvc/config"
	"github.com/gpellegrino/scanner-services/internal/scansvc/models"
	"github.com/gpellegrino/scanner-services/internal/scansvc/service"
	"github.com/gpellegrino/scanner-services/internal/scansvc/ws"
	"github.com/gpellegrino/scanner-services/web"
)

const maxUploadBytes = 10 << 20 // phone camera shots stay well under this

// TaskListDirectory is the slice of the task sink the HTTP surface needs.
type TaskListDirectory interface {
	ListTaskLists(ctx context.Context) ([]models.TaskList, error)
	SelectTaskList(ctx context.Context, id string) (string, error)
	SelectedID() string
	ActiveListTitle(ctx context.Context) string
}

// OCREngine extracts plain text from an uploaded image.
type OCREngine interface {
	Extract(ctx context.Context, image []byte, langs string) (string, error)
}

type Handler struct {
	cfg      svcconfig.Config
	svc      *service.ScanService
	lists    TaskListDirectory
	ocr      OCREngine
	feed     *ws.Feed
	upgrader websocket.Upgrader
	tmpl     *template.Template
}

func NewHandler(cfg svcconfig.Config, svc *service.ScanService, lists TaskListDirectory, engine OCREngine, feed *ws.Feed) *Handler {
	return &Handler{
		cfg:   cfg,
		svc:   svc,
		lists: lists,
		ocr:   engine,
		feed:  feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tmpl: template.Must(template.ParseFS(web.Templates, "templates/dashboard.html")),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HomeHandler renders the dashboard with the active list name.
func (h *Handler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"ActiveListTitle":  h.lists.ActiveListTitle(r.Context()),
		"IngestToken":      h.cfg.IngestToken,
		"PicnicEnabled":    h.cfg.PicnicEnabled,
		"PicnicConfigured": h.cfg.PicnicConfigured,
	}
	if err := h.tmpl.Execute(w, data); err != nil {
		log.Errorf("failed to render dashboard: %v", err)
	}
}

// ScanHandler accepts a scanned code and runs it through the scan pipeline.
func (h *Handler) ScanHandler(w http.ResponseWriter, r *http.Request) {
	var body models.ScanRequest
	_ = json.NewDecoder(r.Body).Decode(&body) // tolerate empty/malformed bodies like the clients send

	// token priority: body field, then header, then query param
	token := body.Token
	if token == "" {
		token = r.Header.Get("X-Ingest-Token")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	pref := service.ParseBoolPref(body.PicnicEnabled)
	if pref == nil {
		if hv := r.Header.Get("X-Picnic-Enabled"); hv != "" {
			pref = service.ParseBoolPref(hv)
		}
	}

	resp, status := h.svc.HandleScan(r.Context(), service.ScanInput{
		RawCode:          body.Code,
		Token:            token,
		ClientPicnicPref: pref,
		RemoteAddr:       r.RemoteAddr,
	})
	writeJSON(w, status, resp)
}

func (h *Handler) RecentHandler(w http.ResponseWriter, r *http.Request) {
	events := h.svc.Recent()
	if events == nil {
		events = []models.ScanEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) ClearRecentHandler(w http.ResponseWriter, r *http.Request) {
	h.svc.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) TasklistsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.lists.ListTaskLists(r.Context())
	if err != nil {
		log.Errorf("failed to list tasklists: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"items":    []models.TaskList{},
			"selected": h.lists.SelectedID(),
			"error":    err.Error(),
		})
		return
	}
	if items == nil {
		items = []models.TaskList{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":    items,
		"selected": h.lists.SelectedID(),
	})
}

func (h *Handler) SelectTasklistHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TasklistID string `json:"tasklist_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	id := strings.TrimSpace(body.TasklistID)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "message": "tasklist_id required"})
		return
	}

	title, err := h.lists.SelectTaskList(r.Context(), id)
	if err != nil {
		log.Errorf("failed to fetch tasklist %s: %v", id, err)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "message": "Unable to select task list"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "title": title, "tasklist_id": id})
}

// OCRHandler takes a multipart image upload and returns the extracted text.
func (h *Handler) OCRHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "message": "Invalid multipart upload"})
		return
	}

	token := r.FormValue("token")
	if token == "" {
		token = r.Header.Get("X-Ingest-Token")
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token != h.cfg.IngestToken {
		log.Infof("ocr auth failed from %s", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "message": "Unauthorized"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "message": "Missing image upload"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "message": "Unable to read upload"})
		return
	}

	text, err := h.ocr.Extract(r.Context(), image, r.FormValue("langs"))
	if err != nil {
		log.Errorf("ocr failed for upload from %s: %v", r.RemoteAddr, err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "message": "OCR failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "text": text})
}

// FeedHandler upgrades the connection and registers it with the live
// activity feed. The read loop only exists to notice the disconnect.
func (h *Handler) FeedHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	h.feed.StoreConnection(socketId, conn)

	go func() {
		defer func() {
			conn.Close()
			h.feed.HandleDisconnect(socketId)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warnf("feed connection %s closed unexpectedly: %v", socketId, err)
				}
				return
			}
		}
	}()
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "scan service is running",
		"code":    200,
	})
}
