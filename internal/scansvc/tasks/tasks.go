package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	tasksapi "google.golang.org/api/tasks/v1"

	"github.com/gpellegrino/scanner-services/internal/scansvc/models"
)

const (
	credentialsFile = "credentials.json"
	tokenFile       = "token.json"
)

// Sink wraps the Google Tasks API and tracks which task list scans land on.
// The selected list id is shared mutable state (changed via /tasklists/select)
// and is guarded separately from the network calls.
type Sink struct {
	svc *tasksapi.Service

	mu        sync.Mutex
	listID    string
	listTitle string
}

// NewSink builds an authenticated client from credentials.json + token.json.
// A missing or expired-beyond-refresh token runs the console OAuth flow once,
// before the server starts taking requests.
func NewSink(ctx context.Context, listID, listTitle string) (*Sink, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", credentialsFile, err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, tasksapi.TasksScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, oauthCfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			log.Warnf("unable to persist OAuth token: %v", err)
		}
	}

	// TokenSource refreshes transparently; persist refreshed tokens so the
	// next start does not need the browser again.
	ts := oauthCfg.TokenSource(ctx, tok)
	svc, err := tasksapi.NewService(ctx, option.WithTokenSource(persistingSource{ts, tok}))
	if err != nil {
		return nil, fmt.Errorf("unable to build tasks client: %w", err)
	}

	return &Sink{svc: svc, listID: listID, listTitle: listTitle}, nil
}

type persistingSource struct {
	src  oauth2.TokenSource
	last *oauth2.Token
}

func (p persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	if p.last == nil || tok.AccessToken != p.last.AccessToken {
		if err := saveToken(tokenFile, tok); err != nil {
			log.Warnf("unable to persist refreshed OAuth token: %v", err)
		} else {
			log.Info("refreshed stored Google OAuth token")
		}
	}
	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	return tok, json.NewDecoder(f).Decode(tok)
}

func tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser, then paste the authorization code:\n%v\n", authURL)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// ListTaskLists returns the user's task lists and makes sure an active list
// id is cached.
func (s *Sink) ListTaskLists(ctx context.Context) ([]models.TaskList, error) {
	result, err := s.svc.Tasklists.List().MaxResults(100).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	items := make([]models.TaskList, 0, len(result.Items))
	for _, it := range result.Items {
		title := it.Title
		if title == "" {
			title = "Untitled"
		}
		items = append(items, models.TaskList{ID: it.Id, Title: title})
	}

	if _, err := s.ensureListID(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

// SelectTaskList makes id the active list after checking it exists.
func (s *Sink) SelectTaskList(ctx context.Context, id string) (string, error) {
	tl, err := s.svc.Tasklists.Get(id).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.listID = id
	s.listTitle = tl.Title
	s.mu.Unlock()

	log.Infof("tasklist selected: %s (%s)", tl.Title, id)
	return tl.Title, nil
}

// SelectedID returns the currently active list id, possibly empty before the
// first ensure.
func (s *Sink) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listID
}

// ActiveListTitle is best-effort for the dashboard header.
func (s *Sink) ActiveListTitle(ctx context.Context) string {
	s.mu.Lock()
	fallback := s.listTitle
	s.mu.Unlock()
	if fallback == "" {
		fallback = "Tasks"
	}

	id, err := s.ensureListID(ctx)
	if err != nil {
		return fallback
	}
	tl, err := s.svc.Tasklists.Get(id).Context(ctx).Do()
	if err != nil || tl.Title == "" {
		return fallback
	}
	return tl.Title
}

// InsertTask creates the task on the active list, resolving or creating the
// list first when none is configured.
func (s *Sink) InsertTask(ctx context.Context, title, notes string) error {
	id, err := s.ensureListID(ctx)
	if err != nil {
		return err
	}

	created, err := s.svc.Tasks.Insert(id, &tasksapi.Task{Title: title, Notes: notes}).Context(ctx).Do()
	if err != nil {
		return err
	}
	log.Infof("created task %s on list %s", created.Id, id)
	return nil
}

// ensureListID resolves the active list: configured id, else the account's
// first list, else a freshly created "Tasks" list.
func (s *Sink) ensureListID(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.listID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	lists, err := s.svc.Tasklists.List().MaxResults(10).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(lists.Items) > 0 {
		s.mu.Lock()
		s.listID = lists.Items[0].Id
		s.listTitle = lists.Items[0].Title
		id = s.listID
		s.mu.Unlock()
		return id, nil
	}

	created, err := s.svc.Tasklists.Insert(&tasksapi.TaskList{Title: "Tasks"}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.listID = created.Id
	s.listTitle = created.Title
	id = s.listID
	s.mu.Unlock()
	return id, nil
}
