package ginserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"karta/internal/app/commands"
	"karta/internal/app/dto"
	listingapp "karta/internal/app/handlers/listings"
	"karta/internal/app/middleware"
	appoutbox "karta/internal/app/outbox"
	"karta/internal/app/queries"
	authsvc "karta/internal/app/services/auth"
	"karta/internal/infra/config"
	"karta/internal/infra/obs"
	"karta/internal/infra/realtime"
	"karta/internal/infra/security"
	"karta/internal/infra/storage/memory"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
	hub *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	repo := memory.NewListingRepository()
	uowFactory := memory.NewUoWFactory(repo)

	commandBase := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBase, listingapp.CreateListingCommand{}.Key(), &listingapp.CreateListingHandler{})
	commands.RegisterHandler(commandBase, listingapp.UpdateListingCommand{}.Key(), &listingapp.UpdateListingHandler{})
	commands.RegisterHandler(commandBase, listingapp.DeleteListingCommand{}.Key(), &listingapp.DeleteListingHandler{})
	commands.RegisterHandler(commandBase, listingapp.PublishListingCommand{}.Key(), &listingapp.PublishListingHandler{})

	commandBus := middleware.ChainCommands(commandBase,
		middleware.Validation(),
		middleware.Idempotency(memory.NewIdempotencyStore(0), nil),
		middleware.OutboxFlush(appoutbox.MultiSink{&realtime.HubSink{Hub: hub, Source: "app://test"}}),
		middleware.Transaction(uowFactory, nil),
	)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, listingapp.SearchCatalogQuery{}.Key(), &listingapp.SearchCatalogHandler{UoWFactory: uowFactory})
	queries.RegisterHandler(queryBus, listingapp.GetListingQuery{}.Key(), &listingapp.GetListingHandler{UoWFactory: uowFactory})

	accounts := &authsvc.Service{
		Users:     memory.NewUserRepository(),
		Sessions:  memory.NewSessionStore(),
		Passwords: security.BcryptHasher{},
		Tokens:    security.RandomTokenGenerator{},
	}

	handlers := Handlers{
		Listing:        ListingHandler{Commands: commandBus, Queries: queryBus},
		Stream:         StreamHandler{Hub: hub},
		Auth:           AuthHandler{Service: accounts},
		AuthMiddleware: AuthMiddleware{Service: accounts}.Handle,
	}
	server := NewServer(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, handlers)

	srv := httptest.NewServer(server.Handler)
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, hub: hub}
}

func (ts *testServer) do(method, path, token string, body any, extraHeaders map[string]string) *http.Response {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		ts.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (ts *testServer) register(email string) string {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"name":     "Test Seller",
		"password": "correct horse",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		ts.t.Fatalf("register status = %d", resp.StatusCode)
	}
	auth := decodeBody[dto.AuthResponse](ts.t, resp)
	if auth.Token == "" {
		ts.t.Fatalf("register returned empty token")
	}
	return auth.Token
}

func listingBody(title string, price int64) map[string]any {
	return map[string]any{
		"title":          title,
		"description":    "test item",
		"price_cents":    price,
		"contact_number": "+49 157 4444444",
	}
}

func (ts *testServer) createListing(token, title string, price int64) dto.Listing {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/api/v1/listings", token, listingBody(title, price), nil)
	if resp.StatusCode != http.StatusCreated {
		ts.t.Fatalf("create status = %d", resp.StatusCode)
	}
	return decodeBody[dto.Listing](ts.t, resp)
}

func TestListingLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("seller@example.com")

	created := ts.createListing(token, "Espresso machine", 18000)
	if created.ID == "" || created.Published {
		t.Fatalf("created = %+v", created)
	}

	resp := ts.do(http.MethodGet, "/api/v1/listings/"+created.ID, "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decodeBody[dto.Listing](t, resp)
	if got.Title != "Espresso machine" {
		t.Fatalf("get = %+v", got)
	}

	resp = ts.do(http.MethodPut, "/api/v1/listings/"+created.ID, token, listingBody("Espresso machine, descaled", 15000), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	updated := decodeBody[dto.Listing](t, resp)
	if updated.PriceCents != 15000 {
		t.Fatalf("updated price = %d", updated.PriceCents)
	}

	resp = ts.do(http.MethodPost, "/api/v1/listings/"+created.ID+"/publish", token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish status = %d", resp.StatusCode)
	}
	published := decodeBody[dto.Listing](t, resp)
	if !published.Published {
		t.Fatalf("publish did not flip the flag")
	}

	resp = ts.do(http.MethodDelete, "/api/v1/listings/"+created.ID, token, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.do(http.MethodGet, "/api/v1/listings/"+created.ID, "", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListingStatusCodes(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner@example.com")
	intruder := ts.register("intruder@example.com")

	created := ts.createListing(owner, "Bookshelf", 3000)

	// Mutations require a session.
	resp := ts.do(http.MethodPost, "/api/v1/listings", "", listingBody("No auth", 100), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous create status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Only the owner may touch the listing.
	resp = ts.do(http.MethodPut, "/api/v1/listings/"+created.ID, intruder, listingBody("Hijack", 1), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign update status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = ts.do(http.MethodDelete, "/api/v1/listings/"+created.ID, intruder, nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Domain validation maps to 400.
	resp = ts.do(http.MethodPost, "/api/v1/listings", owner, listingBody("", 100), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty title status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.do(http.MethodPost, "/api/v1/listings/ghost/publish", owner, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("publish missing status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The rejected mutations must not have changed anything.
	resp = ts.do(http.MethodGet, "/api/v1/listings/"+created.ID, "", nil, nil)
	unchanged := decodeBody[dto.Listing](t, resp)
	if unchanged.Title != "Bookshelf" {
		t.Fatalf("listing mutated: %+v", unchanged)
	}
}

func TestCatalogFiltersOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("seller@example.com")

	ts.createListing(token, "Road bike", 20000)
	ts.createListing(token, "City bike", 4500)
	ts.createListing(token, "Desk", 8000)

	resp := ts.do(http.MethodGet, "/api/v1/listings?title=bike&price_max_cents=5000", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog status = %d", resp.StatusCode)
	}
	catalog := decodeBody[dto.ListingCatalog](t, resp)
	if catalog.Meta.Total != 1 || len(catalog.Items) != 1 {
		t.Fatalf("catalog = %+v", catalog.Meta)
	}
	if catalog.Items[0].Title != "City bike" {
		t.Fatalf("filtered item = %+v", catalog.Items[0])
	}
}

func TestCatalogPublishedFilterOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("seller@example.com")

	draft := ts.createListing(token, "Draft armchair", 12000)
	live := ts.createListing(token, "Live armchair", 11000)
	resp := ts.do(http.MethodPost, "/api/v1/listings/"+live.ID+"/publish", token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.do(http.MethodGet, "/api/v1/listings?published=true", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog status = %d", resp.StatusCode)
	}
	catalog := decodeBody[dto.ListingCatalog](t, resp)
	if catalog.Meta.Total != 1 || len(catalog.Items) != 1 {
		t.Fatalf("published catalog = %+v", catalog.Meta)
	}
	if catalog.Items[0].ID != live.ID || !catalog.Items[0].Published {
		t.Fatalf("published item = %+v", catalog.Items[0])
	}

	// Without the flag both records are visible, drafts included.
	resp = ts.do(http.MethodGet, "/api/v1/listings", "", nil, nil)
	catalog = decodeBody[dto.ListingCatalog](t, resp)
	if catalog.Meta.Total != 2 {
		t.Fatalf("unfiltered total = %d, want 2", catalog.Meta.Total)
	}
	seen := map[string]bool{}
	for _, item := range catalog.Items {
		seen[item.ID] = true
	}
	if !seen[draft.ID] || !seen[live.ID] {
		t.Fatalf("unfiltered catalog missing records: %v", seen)
	}
}

func TestCreateIdempotencyOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("seller@example.com")
	headers := map[string]string{"Idempotency-Key": "req-1"}

	first := ts.do(http.MethodPost, "/api/v1/listings", token, listingBody("Lamp", 2500), headers)
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first status = %d", first.StatusCode)
	}
	firstListing := decodeBody[dto.Listing](t, first)

	second := ts.do(http.MethodPost, "/api/v1/listings", token, listingBody("Lamp", 2500), headers)
	if second.StatusCode != http.StatusCreated {
		t.Fatalf("retry status = %d", second.StatusCode)
	}
	secondListing := decodeBody[dto.Listing](t, second)
	if firstListing.ID != secondListing.ID {
		t.Fatalf("retry created a second listing: %q vs %q", firstListing.ID, secondListing.ID)
	}

	resp := ts.do(http.MethodGet, "/api/v1/listings", "", nil, nil)
	catalog := decodeBody[dto.ListingCatalog](t, resp)
	if catalog.Meta.Total != 1 {
		t.Fatalf("catalog total = %d, want 1", catalog.Meta.Total)
	}
}

// readSSEEvent scans one complete event off the stream.
func readSSEEvent(t *testing.T, reader *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(line[len("data:"):])
		}
	}
}

func TestStreamDeliversCommittedChanges(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register("seller@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.srv.URL+"/api/v1/listings/stream", nil)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type = %q", ct)
	}

	// Wait for the subscription before mutating, so the event is not
	// published into the void.
	deadline := time.After(2 * time.Second)
	for ts.hub.Len() == 0 {
		select {
		case <-deadline:
			t.Fatalf("stream session never attached")
		case <-time.After(5 * time.Millisecond):
		}
	}

	created := ts.createListing(token, "Record player", 9000)

	reader := bufio.NewReader(resp.Body)
	name, data := readSSEEvent(t, reader)
	if name != "listing.created" {
		t.Fatalf("event = %q", name)
	}
	change, err := dto.DecodeListingChange(name, []byte(data))
	if err != nil {
		t.Fatalf("decode change: %v", err)
	}
	if change.ID != created.ID || change.Listing == nil || change.Listing.Title != "Record player" {
		t.Fatalf("change = %+v", change)
	}

	resp2 := ts.do(http.MethodDelete, "/api/v1/listings/"+created.ID, token, nil, nil)
	if resp2.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp2.StatusCode)
	}
	resp2.Body.Close()

	name, data = readSSEEvent(t, reader)
	if name != "listing.deleted" {
		t.Fatalf("event = %q", name)
	}
	change, err = dto.DecodeListingChange(name, []byte(data))
	if err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if change.ID != created.ID || change.Listing != nil {
		t.Fatalf("delete change = %+v", change)
	}
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	token := ts.register("person@example.com")

	// Duplicate email is a conflict.
	resp := ts.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "person@example.com",
		"name":     "Other",
		"password": "long enough",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.do(http.MethodGet, "/api/v1/auth/me", token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	profile := decodeBody[dto.UserProfile](t, resp)
	if profile.Email != "person@example.com" {
		t.Fatalf("profile = %+v", profile)
	}

	resp = ts.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "person@example.com",
		"password": "wrong password",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "person@example.com",
		"password": "correct horse",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	login := decodeBody[dto.AuthResponse](t, resp)
	if login.Token == "" {
		t.Fatalf("login returned no token")
	}

	resp = ts.do(http.MethodPost, "/api/v1/auth/logout", token, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The revoked token no longer resolves.
	resp = ts.do(http.MethodGet, "/api/v1/auth/me", token, nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/livez", "/readyz"} {
		resp := ts.do(http.MethodGet, path, "", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
