package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/handler"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service"
	"github.com/ashwinyue/persona-hub/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t   *testing.T
	r   *gin.Engine
	fix *testutil.Fixture
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	f := testutil.NewFixture(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Storage.DataDir = f.Dir
	cfg.Storage.BackupDir = t.TempDir()
	cfg.File.LocalPath = t.TempDir()
	cfg.RateLimit.Global.Max = 1000
	cfg.RateLimit.Register.Max = 100
	cfg.RateLimit.Login.Max = 100

	svc, err := service.NewServices(context.Background(), f.Repos, cfg, nil, f.Logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := handler.RegisterValidators(); err != nil {
		t.Fatal(err)
	}
	return &testServer{t: t, r: SetupRouter(svc, handler.NewHandlers(svc), f.Logger), fix: f}
}

type creds struct{ id, key string }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
}

func (s *testServer) do(method, path string, body any, who *creds) (int, envelope, http.Header) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set("X-User-ID", who.id)
		req.Header.Set("X-Auth-Key", who.key)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: bad body %q", method, path, w.Body.String())
		}
	}
	return w.Code, env, w.Header()
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

type session struct {
	UserID string `json:"userId"`
	Key    string `json:"key"`
}

func (s *testServer) register(name, password string) *creds {
	s.t.Helper()
	code, env, _ := s.do(http.MethodPost, "/api/register", map[string]string{"username": name, "password": password}, nil)
	if code != http.StatusCreated {
		s.t.Fatalf("register %s: %d %s", name, code, env.Msg)
	}
	sess := decode[session](s.t, env.Data)
	return &creds{id: sess.UserID, key: sess.Key}
}

func (s *testServer) createBot(who *creds, body map[string]any) string {
	s.t.Helper()
	code, env, _ := s.do(http.MethodPost, "/api/bots", body, who)
	if code != http.StatusCreated {
		s.t.Fatalf("create bot: %d %s", code, env.Msg)
	}
	return decode[struct {
		ID string `json:"id"`
	}](s.t, env.Data).ID
}

func (s *testServer) listBots(who *creds) []*model.BotInfo {
	s.t.Helper()
	code, env, _ := s.do(http.MethodGet, "/api/bots", nil, who)
	if code != http.StatusOK {
		s.t.Fatalf("list bots: %d", code)
	}
	return decode[struct {
		Bots []*model.BotInfo `json:"bots"`
	}](s.t, env.Data).Bots
}

func find(bots []*model.BotInfo, id string) *model.BotInfo {
	for _, b := range bots {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func TestScenario_PrivateBot(t *testing.T) {
	s := newTestServer(t)

	alice := s.register("alice", "password123")
	code, env, _ := s.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "password123"}, nil)
	if code != http.StatusOK {
		t.Fatalf("login: %d %s", code, env.Msg)
	}
	login := decode[session](t, env.Data)
	if login.UserID != alice.id || login.Key != alice.key {
		t.Fatalf("login returned %+v, want %+v", login, alice)
	}

	id := s.createBot(alice, map[string]any{"name": "Rin", "status": "private", "sys_pmt": "x", "greeting": "hi"})

	code, env, _ = s.do(http.MethodGet, "/api/bots/"+id, nil, alice)
	if code != http.StatusOK {
		t.Fatalf("owner get: %d", code)
	}
	b := decode[model.BotInfo](t, env.Data)
	if b.SysPmt == nil || *b.SysPmt != "x" {
		t.Errorf("owner should see sys_pmt, got %+v", b.SysPmt)
	}

	if code, _, _ := s.do(http.MethodGet, "/api/bots/"+id, nil, nil); code != http.StatusNotFound {
		t.Errorf("anonymous get private bot: %d, want 404", code)
	}
	if find(s.listBots(nil), id) != nil {
		t.Error("private bot must not appear in the anonymous listing")
	}
}

func TestScenario_PublicBot(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "password123")
	id := s.createBot(alice, map[string]any{"name": "Rin", "status": "public", "sys_pmt": "x", "greeting": "hi"})

	listed := find(s.listBots(nil), id)
	if listed == nil {
		t.Fatal("public bot should be listed")
	}
	if listed.SysPmt != nil {
		t.Error("listing must not include sys_pmt for anonymous callers")
	}

	code, env, _ := s.do(http.MethodGet, "/api/bots/"+id, nil, nil)
	if code != http.StatusOK {
		t.Fatalf("anonymous get public bot: %d", code)
	}
	if b := decode[model.BotInfo](t, env.Data); b.SysPmt == nil || *b.SysPmt != "x" {
		t.Error("detail route returns sys_pmt for public bots")
	}

	if owned := find(s.listBots(alice), id); owned == nil || owned.SysPmt == nil {
		t.Error("owner listing should include sys_pmt")
	}
}

func TestAuthAndErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "password123")
	bob := s.register("bobby", "password123")
	id := s.createBot(alice, map[string]any{"name": "Rin", "status": "public", "sys_pmt": "x", "greeting": "hi"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		who    *creds
		want   int
	}{
		{"duplicate register", http.MethodPost, "/api/register", map[string]string{"username": "alice", "password": "password123"}, nil, http.StatusConflict},
		{"bad username", http.MethodPost, "/api/register", map[string]string{"username": "a!", "password": "password123"}, nil, http.StatusBadRequest},
		{"wrong password", http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "wrongpass1"}, nil, http.StatusUnauthorized},
		{"create without auth", http.MethodPost, "/api/bots", map[string]any{"name": "x"}, nil, http.StatusUnauthorized},
		{"bad key", http.MethodGet, "/api/chats", nil, &creds{id: alice.id, key: "forged"}, http.StatusUnauthorized},
		{"non-owner update", http.MethodPut, "/api/bots/" + id, map[string]any{"name": "x"}, bob, http.StatusForbidden},
		{"author update", http.MethodPut, "/api/bots/" + id, map[string]any{"author": "bobby"}, alice, http.StatusBadRequest},
		{"non-owner delete", http.MethodDelete, "/api/bots/" + id, nil, bob, http.StatusForbidden},
		{"missing bot", http.MethodGet, "/api/bots/999", nil, nil, http.StatusNotFound},
		{"bad encoded id", http.MethodGet, "/api/bots/id/%25%25", nil, nil, http.StatusBadRequest},
		{"profile extra field", http.MethodPut, "/api/profile/update", map[string]any{"name": "x"}, alice, http.StatusBadRequest},
		{"nsfw without file", http.MethodPost, "/api/check-nsfw", nil, nil, http.StatusBadRequest},
		{"ai not configured", http.MethodPost, "/api/create-message", map[string]any{"context": "hello"}, alice, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env, _ := s.do(tt.method, tt.path, tt.body, tt.who)
			if code != tt.want {
				t.Fatalf("status = %d (%s), want %d", code, env.Msg, tt.want)
			}
			if env.Code != tt.want || env.Msg == "" {
				t.Errorf("error envelope = %+v", env)
			}
		})
	}
}

func TestConversationScoping(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "password123")
	bob := s.register("bobby", "password123")

	code, env, _ := s.do(http.MethodPost, "/api/chats", map[string]any{
		"with":     "0",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}, alice)
	if code != http.StatusOK {
		t.Fatalf("upsert: %d %s", code, env.Msg)
	}
	chatID := decode[struct {
		ID string `json:"id"`
	}](t, env.Data).ID

	if code, _, _ := s.do(http.MethodGet, "/api/chats/"+chatID, nil, alice); code != http.StatusOK {
		t.Errorf("owner get: %d", code)
	}
	if code, _, _ := s.do(http.MethodGet, "/api/chats/"+chatID, nil, bob); code != http.StatusNotFound {
		t.Errorf("other user get: %d, want 404", code)
	}
	if code, _, _ := s.do(http.MethodDelete, "/api/chats/"+chatID, nil, bob); code != http.StatusNotFound {
		t.Errorf("other user delete: %d, want 404", code)
	}
	code, _, _ = s.do(http.MethodPost, "/api/chats", map[string]any{"id": chatID, "with": "1", "messages": []any{}}, bob)
	if code != http.StatusForbidden {
		t.Errorf("other user upsert: %d, want 403", code)
	}

	code, env, _ = s.do(http.MethodGet, "/api/chats", nil, alice)
	if code != http.StatusOK {
		t.Fatal(code)
	}
	chats := decode[struct {
		Chats map[string]model.ConversationSummary `json:"chats"`
	}](t, env.Data).Chats
	if chats[chatID].MessageCount != 1 {
		t.Errorf("summary = %+v", chats[chatID])
	}

	if code, _, _ := s.do(http.MethodDelete, "/api/chats/"+chatID, nil, alice); code != http.StatusOK {
		t.Errorf("owner delete: %d", code)
	}
}

func TestDeleteAccountCascade(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "password123")
	bob := s.register("bobby", "password123")
	aliceBot := s.createBot(alice, map[string]any{"name": "A", "status": "public", "sys_pmt": "x", "greeting": "hi"})
	bobBot := s.createBot(bob, map[string]any{"name": "B", "status": "public", "sys_pmt": "y", "greeting": "hi"})

	if code, env, _ := s.do(http.MethodDelete, "/api/delete-account", nil, alice); code != http.StatusOK {
		t.Fatalf("delete account: %d %s", code, env.Msg)
	}

	if code, _, _ := s.do(http.MethodGet, "/api/bots/"+aliceBot, nil, nil); code != http.StatusNotFound {
		t.Errorf("alice's bot should be gone, got %d", code)
	}
	if code, _, _ := s.do(http.MethodGet, "/api/bots/"+bobBot, nil, nil); code != http.StatusOK {
		t.Errorf("bobby's bot should survive, got %d", code)
	}
	if code, _, _ := s.do(http.MethodGet, "/api/recent-bots", nil, alice); code != http.StatusUnauthorized {
		t.Errorf("deleted account's key should stop working, got %d", code)
	}
}

func TestHealthStatsAndTags(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "password123")
	s.createBot(alice, map[string]any{"name": "A", "status": "public", "sys_pmt": "x", "greeting": "hi", "tags": []string{"cozy"}})
	s.createBot(alice, map[string]any{"name": "B", "status": "private", "sys_pmt": "x", "greeting": "hi", "tags": []string{"secret"}})

	if code, _, _ := s.do(http.MethodGet, "/api/health", nil, nil); code != http.StatusOK {
		t.Errorf("health: %d", code)
	}

	code, env, _ := s.do(http.MethodGet, "/api/tags", nil, nil)
	if code != http.StatusOK {
		t.Fatal(code)
	}
	tags := decode[struct {
		Tags []string `json:"tags"`
	}](t, env.Data).Tags
	if len(tags) != 1 || tags[0] != "cozy" {
		t.Errorf("anonymous tags = %v", tags)
	}

	code, env, _ = s.do(http.MethodGet, "/api/stats", nil, alice)
	if code != http.StatusOK {
		t.Fatal(code)
	}
	sum := decode[model.StatsSummary](t, env.Data)
	if sum.TotalUsers != 1 || sum.TotalBots != 2 || sum.PublicBots != 1 || sum.DailyActiveUsers != 1 {
		t.Errorf("stats = %+v", sum)
	}
	if sum.TotalRequests < 5 {
		t.Errorf("totalRequests = %d, every request should be counted", sum.TotalRequests)
	}
}

func TestRouteQuota(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice", "password123")
	id := s.createBot(alice, map[string]any{"name": "A", "status": "public", "sys_pmt": "x", "greeting": "hi"})

	if code, _, _ := s.do(http.MethodPost, "/api/log-bot-use", map[string]string{"botId": id}, alice); code != http.StatusOK {
		t.Fatalf("first log-bot-use: %d", code)
	}
	code, _, h := s.do(http.MethodPost, "/api/log-bot-use", map[string]string{"botId": id}, alice)
	if code != http.StatusTooManyRequests {
		t.Fatalf("second log-bot-use: %d, want 429", code)
	}
	if h.Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}
