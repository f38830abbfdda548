package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sports-buddy-backend/internal/config"
	"sports-buddy-backend/internal/models"
	"sports-buddy-backend/internal/repository/memory"
	"sports-buddy-backend/internal/services"

	"github.com/gorilla/websocket"
)

const testConfig = `
auth:
  secret: test-secret
database:
  driver: memory
app:
  timezone: Asia/Kolkata
`

func setupServer(t *testing.T) (*httptest.Server, *app) {
	t.Helper()

	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open stores: %v", err)
	}
	a, err := newApp(context.Background(), cfg, st)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}

	srv := httptest.NewServer(a.router())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.shutdown(ctx, srv.Config)
		srv.Close()
	})
	return srv, a
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func registerUser(t *testing.T, srv *httptest.Server, name, email string) string {
	t.Helper()
	var res services.AuthResult
	status := doJSON(t, srv, http.MethodPost, "/api/v1/auth/register", "", services.RegisterRequest{
		Name: name, Email: email, Password: "secret123", ConfirmPassword: "secret123", Location: "Pune",
	}, &res)
	if status != http.StatusCreated {
		t.Fatalf("register returned %d", status)
	}
	return res.Token
}

type feedResponse struct {
	Listings []struct {
		ID               string `json:"id"`
		Sport            string `json:"sport"`
		ParticipantCount int    `json:"participant_count"`
		Joined           bool   `json:"joined"`
		CanDelete        bool   `json:"can_delete"`
	} `json:"listings"`
	Empty bool `json:"empty"`
}

func waitForFeed(t *testing.T, srv *httptest.Server, token, query string, want int) feedResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		var feed feedResponse
		doJSON(t, srv, http.MethodGet, "/api/v1/listings"+query, token, nil, &feed)
		if len(feed.Listings) == want {
			return feed
		}
		if time.Now().After(deadline) {
			t.Fatalf("feed never reached %d listings, last %+v", want, feed)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListingLifecycleOverHTTP(t *testing.T) {
	srv, _ := setupServer(t)
	owner := registerUser(t, srv, "Asha", "asha@mail.com")
	player := registerUser(t, srv, "Ravi", "ravi@mail.com")

	players := 2
	var created struct {
		Notice services.Notice `json:"notice"`
		Data   models.Listing  `json:"data"`
	}
	status := doJSON(t, srv, http.MethodPost, "/api/v1/listings", owner, services.CreateListingRequest{
		Sport: "Football", City: "Pune", Area: "Kothrud", Skill: "Beginner",
		Date: "2099-01-01", Time: "18:00", PlayersNeeded: &players,
	}, &created)
	if status != http.StatusCreated || created.Data.ID == "" {
		t.Fatalf("create returned %d %+v", status, created)
	}
	id := created.Data.ID

	feed := waitForFeed(t, srv, player, "?sport=Football&q=kothrud", 1)
	if feed.Listings[0].CanDelete || feed.Listings[0].Joined {
		t.Errorf("unexpected flags for another user: %+v", feed.Listings[0])
	}

	var joined struct {
		Notice services.Notice `json:"notice"`
	}
	if status := doJSON(t, srv, http.MethodPost, "/api/v1/listings/"+id+"/join", player, nil, &joined); status != http.StatusOK {
		t.Fatalf("join returned %d", status)
	}
	if joined.Notice.Tone != services.ToneSuccess {
		t.Errorf("unexpected join notice %+v", joined.Notice)
	}

	var again struct {
		Kind   string          `json:"kind"`
		Notice services.Notice `json:"notice"`
	}
	if status := doJSON(t, srv, http.MethodPost, "/api/v1/listings/"+id+"/join", player, nil, &again); status != http.StatusConflict {
		t.Fatalf("second join returned %d", status)
	}
	if again.Kind != "already_joined" || again.Notice.Tone != services.ToneInfo {
		t.Errorf("unexpected second join response %+v", again)
	}

	if status := doJSON(t, srv, http.MethodDelete, "/api/v1/listings/"+id, player, nil, nil); status != http.StatusForbidden {
		t.Errorf("non-owner delete returned %d", status)
	}
	if status := doJSON(t, srv, http.MethodDelete, "/api/v1/listings/"+id, owner, nil, nil); status != http.StatusOK {
		t.Errorf("owner delete returned %d", status)
	}
	waitForFeed(t, srv, "", "", 0)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := setupServer(t)

	if status := doJSON(t, srv, http.MethodPost, "/api/v1/listings", "", services.CreateListingRequest{}, nil); status != http.StatusUnauthorized {
		t.Errorf("anonymous create returned %d", status)
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/v1/listings", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("bad token returned %d", status)
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/v1/listings", "", nil, nil); status != http.StatusOK {
		t.Errorf("anonymous feed returned %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	srv, _ := setupServer(t)
	token := registerUser(t, srv, "Asha", "asha@mail.com")

	if status := doJSON(t, srv, http.MethodPost, "/api/v1/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout returned %d", status)
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/v1/session", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("revoked token returned %d", status)
	}
}

func TestAdminStatsRequireAdminRole(t *testing.T) {
	srv, a := setupServer(t)
	token := registerUser(t, srv, "Asha", "asha@mail.com")

	if status := doJSON(t, srv, http.MethodGet, "/api/v1/admin/stats", token, nil, nil); status != http.StatusForbidden {
		t.Errorf("non-admin stats returned %d", status)
	}

	var sess struct {
		UserID string `json:"user_id"`
	}
	doJSON(t, srv, http.MethodGet, "/api/v1/session", token, nil, &sess)
	store := a.stores.profiles.(*memory.Store)
	store.PutProfile(models.UserProfile{ID: sess.UserID, Email: "asha@mail.com", Role: models.RoleAdmin})

	var stats models.AdminStats
	if status := doJSON(t, srv, http.MethodGet, "/api/v1/admin/stats", token, nil, &stats); status != http.StatusOK {
		t.Fatalf("admin stats returned %d", status)
	}
	if stats.TotalUsers != 1 || stats.TotalListings != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health returned %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "sportsbuddy_ws_connections") {
		t.Error("metrics output is missing service collectors")
	}
}

func readWS(t *testing.T, conn *websocket.Conn, msgType string) services.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg services.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("failed waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestWebSocketPushesFeedChanges(t *testing.T) {
	srv, _ := setupServer(t)
	token := registerUser(t, srv, "Asha", "asha@mail.com")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	readWS(t, conn, services.MsgSession)
	readWS(t, conn, services.MsgFeed)

	if err := conn.WriteJSON(services.WSMessage{Type: services.MsgAuth, Token: token}); err != nil {
		t.Fatalf("failed to send auth: %v", err)
	}
	msg := readWS(t, conn, services.MsgSession)
	if data, _ := msg.Data.(map[string]interface{}); data["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %+v", msg.Data)
	}

	if err := conn.WriteJSON(services.WSMessage{Type: services.MsgSetFilter, Sport: "Tennis"}); err != nil {
		t.Fatalf("failed to send filter: %v", err)
	}
	readWS(t, conn, services.MsgFeed)

	status := doJSON(t, srv, http.MethodPost, "/api/v1/listings", token, services.CreateListingRequest{
		Sport: "Tennis", City: "Pune", Area: "Baner", Skill: "Advanced", Date: "2099-01-01", Time: "07:00",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create returned %d", status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := readWS(t, conn, services.MsgFeed)
		data, _ := msg.Data.(map[string]interface{})
		if listings, _ := data["listings"].([]interface{}); len(listings) == 1 {
			return
		}
	}
	t.Fatal("feed push with the new listing never arrived")
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv, _ := setupServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", resp)
	}
}

func TestPushTokenRegistration(t *testing.T) {
	srv, a := setupServer(t)

	var res services.AuthResult
	status := doJSON(t, srv, http.MethodPost, "/api/v1/auth/register", "", services.RegisterRequest{
		Name: "Ravi", Email: "ravi@mail.com", Password: "secret123", ConfirmPassword: "secret123", Location: "Pune",
	}, &res)
	if status != http.StatusCreated {
		t.Fatalf("register returned %d", status)
	}

	status = doJSON(t, srv, http.MethodPut, "/api/v1/profile/push-token", res.Token,
		map[string]string{"push_token": " device-abc "}, nil)
	if status != http.StatusNoContent {
		t.Fatalf("push token returned %d", status)
	}

	p, err := a.stores.profiles.GetProfile(context.Background(), res.Profile.ID)
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if p.PushToken == nil || *p.PushToken != "device-abc" {
		t.Errorf("push token not stored, got %v", p.PushToken)
	}

	status = doJSON(t, srv, http.MethodPost, "/api/v1/profile/photo/upload", res.Token,
		services.UploadRequest{ContentType: "image/png"}, nil)
	if status != http.StatusNotImplemented {
		t.Errorf("photo upload without a bucket returned %d", status)
	}
	status = doJSON(t, srv, http.MethodPut, "/api/v1/profile/photo", res.Token,
		services.ConfirmPhotoRequest{Key: "profiles/" + res.Profile.ID + "/a.png"}, nil)
	if status != http.StatusNotImplemented {
		t.Errorf("photo confirm without a bucket returned %d", status)
	}
}

func TestWebSocketSyncAndClearFilters(t *testing.T) {
	srv, _ := setupServer(t)
	token := registerUser(t, srv, "Meera", "meera@mail.com")

	status := doJSON(t, srv, http.MethodPost, "/api/v1/listings", token, services.CreateListingRequest{
		Sport: "Football", City: "Pune", Area: "Kothrud", Skill: "Beginner", Date: "2099-01-01", Time: "18:00",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create returned %d", status)
	}
	waitForFeed(t, srv, token, "", 1)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	readWS(t, conn, services.MsgSession)
	readWS(t, conn, services.MsgFeed)

	countListings := func(msg services.WSMessage) int {
		data, _ := msg.Data.(map[string]interface{})
		listings, _ := data["listings"].([]interface{})
		return len(listings)
	}

	if err := conn.WriteJSON(services.WSMessage{Type: services.MsgSetFilter, Sport: "Tennis"}); err != nil {
		t.Fatalf("failed to send filter: %v", err)
	}
	if n := countListings(readWS(t, conn, services.MsgFeed)); n != 0 {
		t.Errorf("tennis filter returned %d listings", n)
	}

	if err := conn.WriteJSON(services.WSMessage{Type: services.MsgSync}); err != nil {
		t.Fatalf("failed to send sync: %v", err)
	}
	if n := countListings(readWS(t, conn, services.MsgFeed)); n != 0 {
		t.Errorf("sync dropped the filter, got %d listings", n)
	}

	if err := conn.WriteJSON(services.WSMessage{Type: services.MsgClearFilters}); err != nil {
		t.Fatalf("failed to send clear: %v", err)
	}
	if n := countListings(readWS(t, conn, services.MsgFeed)); n != 1 {
		t.Errorf("cleared filter returned %d listings", n)
	}
}

func TestLogoutSignsOutOpenSockets(t *testing.T) {
	srv, a := setupServer(t)
	token := registerUser(t, srv, "Asha", "asha@mail.com")

	var sess struct {
		UserID string `json:"user_id"`
	}
	doJSON(t, srv, http.MethodGet, "/api/v1/session", token, nil, &sess)
	store := a.stores.profiles.(*memory.Store)
	store.PutProfile(models.UserProfile{ID: sess.UserID, Email: "asha@mail.com", Role: models.RoleAdmin})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	readWS(t, conn, services.MsgSession)
	readWS(t, conn, services.MsgAdminStats)
	readWS(t, conn, services.MsgFeed)

	if status := doJSON(t, srv, http.MethodPost, "/api/v1/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout returned %d", status)
	}
	msg := readWS(t, conn, services.MsgSession)
	if data, _ := msg.Data.(map[string]interface{}); data["authenticated"] != false {
		t.Fatalf("expected anonymous session after logout, got %+v", msg.Data)
	}

	other := registerUser(t, srv, "Ravi", "ravi@mail.com")
	status := doJSON(t, srv, http.MethodPost, "/api/v1/listings", other, services.CreateListingRequest{
		Sport: "Tennis", City: "Pune", Area: "Baner", Skill: "Advanced", Date: "2099-01-01", Time: "07:00",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create returned %d", status)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg services.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("feed push with the new listing never arrived: %v", err)
		}
		if msg.Type == services.MsgAdminStats {
			t.Fatal("signed out socket still received admin stats")
		}
		if msg.Type != services.MsgFeed {
			continue
		}
		data, _ := msg.Data.(map[string]interface{})
		if listings, _ := data["listings"].([]interface{}); len(listings) == 1 {
			if first, _ := listings[0].(map[string]interface{}); first["can_delete"] == true {
				t.Error("signed out socket still sees admin delete rights")
			}
			return
		}
	}
}

func TestShutdownClosesStoresAfterDrain(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open stores: %v", err)
	}
	var closed, closedMidRequest atomic.Bool
	st.close = func() { closed.Store(true) }

	a, err := newApp(context.Background(), cfg, st)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		if closed.Load() {
			closedMidRequest.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.Serve(ln)

	requestDone := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
		requestDone <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- a.shutdown(ctx, srv) }()

	time.Sleep(100 * time.Millisecond)
	if closed.Load() {
		t.Error("stores closed while a request was still being served")
	}
	close(release)

	if err := <-requestDone; err != nil {
		t.Fatalf("in-flight request failed: %v", err)
	}
	if err := <-shutdownDone; err != nil {
		t.Errorf("shutdown returned error: %v", err)
	}
	if closedMidRequest.Load() {
		t.Error("request observed closed stores")
	}
	if !closed.Load() {
		t.Error("stores were never closed")
	}
}
