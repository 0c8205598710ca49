package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcconfig "github.com/gpellegrino/scanner-services/internal/scansvc/config"
	"github.com/gpellegrino/scanner-services/internal/scansvc/models"
)

type fakeLookup struct {
	product models.Product
	calls   int
}

func (f *fakeLookup) Lookup(code string) models.Product {
	f.calls++
	if f.product.Title == "" {
		return models.Product{Title: code, Notes: "Barcode: " + code}
	}
	return f.product
}

type fakeSink struct {
	mu    sync.Mutex
	err   error
	tasks []string
}

func (f *fakeSink) InsertTask(ctx context.Context, title, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, title)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

type fakeCart struct {
	ok    bool
	msg   string
	calls int
}

func (f *fakeCart) Sync(ctx context.Context, code, title string) (bool, string) {
	f.calls++
	return f.ok, f.msg
}

func boolPtr(b bool) *bool { return &b }

func newTestService(cfg svcconfig.Config) (*ScanService, *fakeLookup, *fakeSink, *fakeCart) {
	if cfg.IngestToken == "" {
		cfg.IngestToken = "secret"
	}
	lk := &fakeLookup{}
	sk := &fakeSink{}
	ct := &fakeCart{ok: true, msg: "Picnic cart updated"}
	return NewScanService(cfg, lk, sk, ct, nil), lk, sk, ct
}

func TestHandleScanHappyPath(t *testing.T) {
	svc, lk, sk, _ := newTestService(svcconfig.Config{})
	lk.product = models.Product{Title: "Wrigley - Juicy Fruit Gum", Notes: "Barcode: 0036000291452"}

	resp, status := svc.HandleScan(context.Background(), ScanInput{
		RawCode: "036000291452", Token: "secret",
	})

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.OK)
	assert.Equal(t, "Added task: Wrigley - Juicy Fruit Gum", resp.Message)
	assert.Equal(t, 1, sk.count())

	recent := svc.Recent()
	require.Len(t, recent, 1)
	// 12-digit UPC-A gains a leading zero even though it already starts with 0
	assert.Equal(t, "0036000291452", recent[0].Code)
}

func TestHandleScanBadToken(t *testing.T) {
	svc, _, sk, _ := newTestService(svcconfig.Config{})

	resp, status := svc.HandleScan(context.Background(), ScanInput{
		RawCode: "123", Token: "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, resp.OK)
	assert.Zero(t, sk.count())
	assert.Empty(t, svc.Recent())
}

func TestHandleScanMissingCode(t *testing.T) {
	svc, _, sk, _ := newTestService(svcconfig.Config{})

	resp, status := svc.HandleScan(context.Background(), ScanInput{
		RawCode: "   ", Token: "secret",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.OK)
	assert.Equal(t, "Missing code", resp.Message)
	assert.Equal(t, "Picnic sync skipped", resp.PicnicMessage)
	assert.Zero(t, sk.count())
}

func TestHandleScanDuplicate(t *testing.T) {
	svc, _, sk, ct := newTestService(svcconfig.Config{})

	_, status := svc.HandleScan(context.Background(), ScanInput{RawCode: "4006381333931", Token: "secret"})
	require.Equal(t, http.StatusOK, status)

	resp, status := svc.HandleScan(context.Background(), ScanInput{RawCode: "4006381333931", Token: "secret"})

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.OK)
	assert.Equal(t, "Ignored duplicate: 4006381333931", resp.Message)
	assert.False(t, resp.PicnicEnabled)
	assert.Equal(t, "Picnic sync skipped (duplicate)", resp.PicnicMessage)
	assert.Equal(t, 1, sk.count())
	assert.Zero(t, ct.calls)

	recent := svc.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "4006381333931 (dup ignored)", recent[0].Code)
	assert.Equal(t, "Duplicate ignored", recent[0].Title)
}

func TestHandleScanRawVariantsCollapse(t *testing.T) {
	// 12-digit UPC-A and its 13-digit EAN form dedup to the same key
	svc, _, sk, _ := newTestService(svcconfig.Config{})

	svc.HandleScan(context.Background(), ScanInput{RawCode: "036000291452", Token: "secret"})
	resp, _ := svc.HandleScan(context.Background(), ScanInput{RawCode: "0036000291452", Token: "secret"})

	assert.Contains(t, resp.Message, "Ignored duplicate:")
	assert.Equal(t, 1, sk.count())
}

func TestHandleScanTaskCreationFails(t *testing.T) {
	svc, _, sk, _ := newTestService(svcconfig.Config{})
	sk.err = errors.New("quota exceeded")

	resp, status := svc.HandleScan(context.Background(), ScanInput{RawCode: "123", Token: "secret"})

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Message, "Failed to create Google Task")
	// failed creations never reach the activity log
	assert.Empty(t, svc.Recent())
}

func TestHandleScanPicnicSyncSuccess(t *testing.T) {
	svc, _, _, ct := newTestService(svcconfig.Config{PicnicEnabled: true, PicnicConfigured: true})

	resp, _ := svc.HandleScan(context.Background(), ScanInput{RawCode: "123", Token: "secret"})

	assert.True(t, resp.PicnicEnabled)
	assert.True(t, resp.PicnicOK)
	assert.Equal(t, 1, ct.calls)
	assert.Contains(t, resp.Message, "(Picnic cart updated)")
}

func TestHandleScanPicnicSyncFailureDoesNotFailScan(t *testing.T) {
	svc, _, sk, ct := newTestService(svcconfig.Config{PicnicEnabled: true, PicnicConfigured: true})
	ct.ok = false
	ct.msg = "No product found"

	resp, status := svc.HandleScan(context.Background(), ScanInput{RawCode: "123", Token: "secret"})

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.OK)
	assert.True(t, resp.PicnicEnabled)
	assert.False(t, resp.PicnicOK)
	assert.Contains(t, resp.Message, "(Picnic add failed: No product found)")
	assert.Equal(t, 1, sk.count())
}

func TestHandleScanClientPrefNarrows(t *testing.T) {
	svc, _, _, ct := newTestService(svcconfig.Config{PicnicEnabled: true, PicnicConfigured: true})

	resp, _ := svc.HandleScan(context.Background(), ScanInput{
		RawCode: "123", Token: "secret", ClientPicnicPref: boolPtr(false),
	})

	assert.Zero(t, ct.calls)
	assert.False(t, resp.PicnicEnabled)
	assert.Equal(t, "Picnic sync disabled for this device", resp.PicnicMessage)
	assert.Contains(t, resp.Message, "(Picnic sync disabled for this device)")
}

func TestHandleScanClientPrefCannotWiden(t *testing.T) {
	svc, _, _, ct := newTestService(svcconfig.Config{PicnicEnabled: false, PicnicConfigured: false})

	resp, _ := svc.HandleScan(context.Background(), ScanInput{
		RawCode: "123", Token: "secret", ClientPicnicPref: boolPtr(true),
	})

	assert.Zero(t, ct.calls)
	assert.False(t, resp.PicnicEnabled)
	// picnic note only decorates the message when the integration is enabled
	assert.Equal(t, "Added task: 123", resp.Message)
}

func TestHandleScanPicnicEnabledButHelperMissing(t *testing.T) {
	svc, _, _, ct := newTestService(svcconfig.Config{PicnicEnabled: true, PicnicConfigured: false})

	resp, _ := svc.HandleScan(context.Background(), ScanInput{RawCode: "123", Token: "secret"})

	assert.Zero(t, ct.calls)
	assert.Equal(t, "Picnic integration not configured on server", resp.PicnicMessage)
}

func TestClearResetsDedup(t *testing.T) {
	svc, _, sk, _ := newTestService(svcconfig.Config{})

	svc.HandleScan(context.Background(), ScanInput{RawCode: "123", Token: "secret"})
	svc.Clear()
	resp, _ := svc.HandleScan(context.Background(), ScanInput{RawCode: "123", Token: "secret"})

	assert.NotContains(t, resp.Message, "Ignored duplicate")
	assert.Equal(t, 2, sk.count())
	assert.Len(t, svc.Recent(), 1)
}

func TestConcurrentScansSameCodeCreateOneTask(t *testing.T) {
	svc, _, sk, _ := newTestService(svcconfig.Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.HandleScan(context.Background(), ScanInput{RawCode: "4006381333931", Token: "secret"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sk.count())
}

func TestParseBoolPref(t *testing.T) {
	tests := []struct {
		in   interface{}
		want *bool
	}{
		{nil, nil},
		{true, boolPtr(true)},
		{false, boolPtr(false)},
		{float64(1), boolPtr(true)},
		{float64(0), boolPtr(false)},
		{"yes", boolPtr(true)},
		{" ON ", boolPtr(true)},
		{"0", boolPtr(false)},
		{"off", boolPtr(false)},
		{"maybe", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := ParseBoolPref(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "in=%v", tt.in)
		} else {
			require.NotNil(t, got, "in=%v", tt.in)
			assert.Equal(t, *tt.want, *got, "in=%v", tt.in)
		}
	}
}
