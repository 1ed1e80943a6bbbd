package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"karta/internal/app/dto"
)

var (
	// ErrViewStale is returned while the connection is lost and the
	// view may lag behind the board.
	ErrViewStale = errors.New("client: view is stale")

	ErrNotInitialized = errors.New("client: view not initialized")
	ErrChangeInvalid  = errors.New("client: change event malformed")
)

const (
	defaultSnapshotLimit  = 500
	defaultReconnectDelay = 2 * time.Second
)

// Options configure a sync agent.
type Options struct {
	// BaseURL points at the server root, e.g. "http://localhost:8080".
	BaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Token is an optional bearer token sent with every request.
	Token string
	// SnapshotLimit caps the initial catalog fetch.
	SnapshotLimit int
	// ReconnectDelay is the pause before a dropped stream is retried.
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Agent maintains a local materialized view of the listing board. It
// initializes from a catalog snapshot, applies change events pushed by
// the server, and serves filtered reads from the view without further
// network traffic.
type Agent struct {
	baseURL        string
	http           *http.Client
	token          string
	snapshotLimit  int
	reconnectDelay time.Duration
	logger         *slog.Logger

	mu          sync.RWMutex
	initialized bool
	stale       bool
	seq         int64
	view        map[string]viewEntry
}

type viewEntry struct {
	listing dto.Listing
	seq     int64
}

func New(opts Options) *Agent {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	limit := opts.SnapshotLimit
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	return &Agent{
		baseURL:        opts.BaseURL,
		http:           httpClient,
		token:          opts.Token,
		snapshotLimit:  limit,
		reconnectDelay: delay,
		logger:         opts.Logger,
		view:           make(map[string]viewEntry),
	}
}

// Initialize fetches a catalog snapshot and replaces the view with it.
// It also clears the stale flag, so a reconnect follows the same path.
func (a *Agent) Initialize(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/listings?limit=%d", a.baseURL, a.snapshotLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	a.authorize(req)
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: snapshot request failed: %s", resp.Status)
	}
	var catalog dto.ListingCatalog
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return fmt.Errorf("client: decode snapshot: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.view = make(map[string]viewEntry, len(catalog.Items))
	// The snapshot arrives most recently updated first; keep that order
	// by assigning descending sequence numbers.
	for i, item := range catalog.Items {
		a.view[item.ID] = viewEntry{listing: item, seq: int64(len(catalog.Items) - i)}
	}
	a.seq = int64(len(catalog.Items))
	a.initialized = true
	a.stale = false
	if a.logger != nil {
		a.logger.Info("view initialized", "listings", len(catalog.Items))
	}
	return nil
}

// Apply folds one change event into the view. Applying the same event
// twice is harmless; deleting an absent listing is a no-op; for
// conflicting versions of a record the last applied change wins.
func (a *Agent) Apply(change dto.ListingChange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return ErrNotInitialized
	}
	if change.ID == "" {
		return ErrChangeInvalid
	}
	switch change.Kind {
	case "deleted":
		delete(a.view, change.ID)
	case "created", "updated", "published":
		if change.Listing == nil {
			return ErrChangeInvalid
		}
		a.seq++
		a.view[change.ID] = viewEntry{listing: *change.Listing, seq: a.seq}
	default:
		return ErrChangeInvalid
	}
	return nil
}

// Listings returns the filtered view, most recently changed first with
// listing id as the tiebreak. While the view is stale the data cannot
// be trusted and ErrViewStale is returned instead.
func (a *Agent) Listings(f Filter) ([]dto.Listing, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	if a.stale {
		return nil, ErrViewStale
	}
	entries := make([]viewEntry, 0, len(a.view))
	for _, entry := range a.view {
		if f.Matches(entry.listing) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].seq != entries[j].seq {
			return entries[i].seq > entries[j].seq
		}
		return entries[i].listing.ID < entries[j].listing.ID
	})
	out := make([]dto.Listing, len(entries))
	for i, entry := range entries {
		out[i] = entry.listing
	}
	return out, nil
}

// Stale reports whether the view may lag behind the board.
func (a *Agent) Stale() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stale
}

func (a *Agent) markStale() {
	a.mu.Lock()
	a.stale = true
	a.mu.Unlock()
}

// Run keeps the view synchronized until the context ends: snapshot,
// then consume the event stream; on any disconnect mark the view stale
// and start over with a fresh snapshot.
func (a *Agent) Run(ctx context.Context) error {
	for {
		if err := a.Initialize(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if a.logger != nil {
				a.logger.Warn("snapshot failed, retrying", "error", err)
			}
			if err := a.wait(ctx); err != nil {
				return err
			}
			continue
		}
		err := a.consumeStream(ctx)
		a.markStale()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if a.logger != nil {
			a.logger.Warn("stream lost, resynchronizing", "error", err)
		}
		if err := a.wait(ctx); err != nil {
			return err
		}
	}
}

func (a *Agent) wait(ctx context.Context) error {
	timer := time.NewTimer(a.reconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *Agent) authorize(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}
