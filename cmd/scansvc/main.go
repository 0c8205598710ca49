package main

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/gpellegrino/scanner-services/configs"
	svcconfig "github.com/gpellegrino/scanner-services/internal/scansvc/config"
	handlers "github.com/gpellegrino/scanner-services/internal/scansvc/handlers"
	"github.com/gpellegrino/scanner-services/internal/scansvc/lookup"
	"github.com/gpellegrino/scanner-services/internal/scansvc/ocr"
	"github.com/gpellegrino/scanner-services/internal/scansvc/picnic"
	"github.com/gpellegrino/scanner-services/internal/scansvc/service"
	"github.com/gpellegrino/scanner-services/internal/scansvc/tasks"
	"github.com/gpellegrino/scanner-services/internal/scansvc/ws"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "scan"

func init() {
	config.Logging(SERVICE_NAME + "_service")
	config.LoadEnv(SERVICE_NAME)
	config.CreateUniqueInstance(SERVICE_NAME)
}

func main() {
	cfg := svcconfig.Load()

	freePort(cfg.Port)

	// Resolve Google credentials before taking traffic; a dead token is
	// easier to fix at startup than mid-scan.
	log.Info("ensuring Google OAuth token is available before starting server...")
	sink, err := tasks.NewSink(context.Background(), cfg.TasklistID, cfg.TasklistTitle)
	if err != nil {
		log.Fatalf("Google Tasks auth failed: %v", err)
	}

	feed := ws.NewFeed()
	svc := service.NewScanService(cfg,
		lookup.NewClient(),
		sink,
		picnic.NewClient(cfg),
		feed,
	)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimit := 300
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		rateLimit, err = strconv.Atoi(v)
		if err != nil {
			log.Fatalf("Invalid RATE_LIMIT value: %v", err)
		}
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(cfg, svc, sink, ocr.NewEngine(cfg.TesseractBin, cfg.TesseractLangs), feed)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

// freePort kills any leftover dev server still bound to the requested port.
// Unix only; lsof missing or nothing listening are both fine.
func freePort(port string) {
	if runtime.GOOS == "windows" {
		return
	}

	out, err := exec.Command("lsof", "-ti", "tcp:"+port).Output()
	if err != nil {
		return
	}

	for _, pidStr := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(pidStr)
		if err != nil || pid == os.Getpid() {
			continue
		}
		if err := syscall.Kill(pid, syscall.SIGTERM); err == nil {
			log.Infof("killed leftover process %d holding port %s", pid, port)
		}
	}
}
