package bot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	stdimage "image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/service/file"
	"github.com/ashwinyue/persona-hub/internal/service/image"
	"github.com/ashwinyue/persona-hub/internal/service/tag"
	"github.com/ashwinyue/persona-hub/internal/service/types"
	"github.com/ashwinyue/persona-hub/internal/testutil"
)

type harness struct {
	svc      *Service
	fix      *testutil.Fixture
	tags     *tag.Index
	assetDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := testutil.NewFixture(t)
	assetDir := t.TempDir()
	storage, err := file.NewLocalStorage(assetDir, "/assets")
	if err != nil {
		t.Fatal(err)
	}
	idx := tag.NewIndex()
	images := image.NewProcessor(config.ImageConfig{
		BotMaxBytes: 5 << 20, UserMaxBytes: 2 << 20, BotSize: 512, UserSize: 200,
	})
	return &harness{
		svc:      NewService(f.Repos, idx, file.NewService(storage, f.Logger), images, f.Logger),
		fix:      f,
		tags:     idx,
		assetDir: assetDir,
	}
}

func validRequest(name string) *CreateBotRequest {
	return &CreateBotRequest{
		Name:        name,
		Description: "a bot called " + name,
		Status:      model.StatusPublic,
		SysPmt:      "You are " + name,
		Greeting:    "hi",
	}
}

func avatarURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, stdimage.NewRGBA(stdimage.Rect(0, 0, 800, 400))); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func patch(t *testing.T, v map[string]any) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(v))
	for k, val := range v {
		b, err := json.Marshal(val)
		if err != nil {
			t.Fatal(err)
		}
		out[k] = b
	}
	return out
}

func TestCreate(t *testing.T) {
	h := newHarness(t)
	assert := testutil.NewAssertHelper(t)
	userID, _ := h.fix.SeedUser("alice")

	req := validRequest("Rin")
	req.Tags = []string{"anime", " anime ", "<i>cozy</i>"}
	req.Lorebook = []string{"https://wiki.example.com/rin", "nope"}
	req.Description = "<script>x</script>Shrine maiden"

	resp, err := h.svc.Create(context.Background(), userID, req)
	assert.NoError(err)
	assert.Equal("0", resp.ID)

	b := h.fix.Bots()["0"]
	assert.Equal("alice", b.Author)
	assert.Equal("Shrine maiden", b.Description)
	assert.Equal(model.DefaultBotAvatar, b.Avatar)
	assert.Equal("anime,cozy", strings.Join(b.Tags, ","))
	assert.Equal("https://wiki.example.com/rin", strings.Join(b.Lorebook, ","))
	assert.Equal(0, b.Views)
	assert.Equal("0", strings.Join(h.fix.User(userID).Bots, ","))
	assert.Equal(1, h.tags.UsageCount("anime"))
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")

	tests := []struct {
		name   string
		mutate func(r *CreateBotRequest)
	}{
		{"missing name", func(r *CreateBotRequest) { r.Name = "" }},
		{"missing greeting", func(r *CreateBotRequest) { r.Greeting = "" }},
		{"bad status", func(r *CreateBotRequest) { r.Status = "unlisted" }},
		{"long name", func(r *CreateBotRequest) { r.Name = strings.Repeat("n", NameMax+1) }},
		{"long prompt", func(r *CreateBotRequest) { r.SysPmt = strings.Repeat("p", PromptMax+1) }},
		{"too many tags", func(r *CreateBotRequest) {
			for i := 0; i <= TagsMax; i++ {
				r.Tags = append(r.Tags, "t"+strconv.Itoa(i))
			}
		}},
		{"bad avatar", func(r *CreateBotRequest) { r.Avatar = "data:image/png;base64,bm90IGFuIGltYWdl" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest("Rin")
			tt.mutate(req)
			_, err := h.svc.Create(context.Background(), userID, req)
			if !errors.Is(err, types.ErrValidation) {
				t.Fatalf("Create() error = %v, want validation", err)
			}
		})
	}

	if n := len(h.fix.Bots()); n != 0 {
		t.Errorf("failed creates wrote %d bots", n)
	}
}

func TestCreate_WithAvatar(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")
	req := validRequest("Rin")
	req.Avatar = avatarURI(t)

	resp, err := h.svc.Create(context.Background(), userID, req)
	if err != nil {
		t.Fatal(err)
	}
	b := h.fix.Bots()[resp.ID]
	if b.Avatar != "/assets/bots/0.png" {
		t.Errorf("avatar = %s", b.Avatar)
	}
	data, err := os.ReadFile(filepath.Join(h.assetDir, "bots", "0.png"))
	if err != nil {
		t.Fatal(err)
	}
	cfg, _, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width != 512 || cfg.Height != 256 {
		t.Errorf("stored avatar = %+v, %v; want 512x256", cfg, err)
	}
}

func TestCreate_IDMonotonicity(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := h.svc.Create(ctx, userID, validRequest("b"+strconv.Itoa(i)))
		if err != nil {
			t.Fatal(err)
		}
		if resp.ID != strconv.Itoa(i) {
			t.Fatalf("bot %d got id %s", i, resp.ID)
		}
	}

	if err := h.svc.Delete(ctx, userID, "0"); err != nil {
		t.Fatal(err)
	}
	resp, err := h.svc.Create(ctx, userID, validRequest("b3"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID != "3" {
		t.Errorf("id after deleting 0 = %s, want 3", resp.ID)
	}
}

func TestCreate_Concurrent(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")
	const n = 20

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := h.svc.Create(context.Background(), userID, validRequest("b"+strconv.Itoa(i)))
			if err != nil {
				t.Error(err)
				return
			}
			ids <- resp.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}
	bots := h.fix.Bots()
	if len(bots) != n {
		t.Fatalf("persisted %d bots, want %d", len(bots), n)
	}
	for i := 0; i < n; i++ {
		if _, ok := bots[strconv.Itoa(i)]; !ok {
			t.Errorf("missing id %d", i)
		}
	}
	if got := len(h.fix.User(userID).Bots); got != n {
		t.Errorf("user.bots = %d, want %d", got, n)
	}
}

func TestList_AccessAndRedaction(t *testing.T) {
	h := newHarness(t)
	aliceID, _ := h.fix.SeedUser("alice")
	bobID, _ := h.fix.SeedUser("bobby")
	pub := h.fix.SeedBot("alice", model.StatusPublic)
	priv := h.fix.SeedBot("alice", model.StatusPrivate)
	h.fix.SeedBot("alice", "unlisted")
	ctx := context.Background()

	find := func(res *ListResult, id string) *model.BotInfo {
		for _, b := range res.Bots {
			if b.ID == id {
				return b
			}
		}
		return nil
	}

	anon, err := h.svc.List(ctx, "", ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if anon.Total != 1 || find(anon, pub) == nil {
		t.Fatalf("anonymous list = %+v", anon.Bots)
	}
	if find(anon, pub).SysPmt != nil {
		t.Error("anonymous list must not include sys_pmt")
	}

	other, _ := h.svc.List(ctx, bobID, ListQuery{})
	if other.Total != 1 || find(other, pub).SysPmt != nil {
		t.Error("non-owner sees only public bots, redacted")
	}

	owner, _ := h.svc.List(ctx, aliceID, ListQuery{})
	if owner.Total != 2 || find(owner, priv) == nil {
		t.Fatalf("owner list = %+v", owner.Bots)
	}
	if p := find(owner, pub).SysPmt; p == nil || *p == "" {
		t.Error("owner list should include sys_pmt")
	}
}

func TestList_FilterSortPaginate(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")
	ctx := context.Background()

	specs := []struct {
		name, desc string
		tags       []string
		views      int
	}{
		{"Charlie", "space pirate", []string{"scifi"}, 3},
		{"Alpha", "dragon tamer", []string{"fantasy"}, 7},
		{"Bravo", "cyber DRAGON", []string{"scifi", "fantasy"}, 1},
	}
	for _, sp := range specs {
		req := validRequest(sp.name)
		req.Description = sp.desc
		req.Tags = sp.tags
		resp, err := h.svc.Create(ctx, userID, req)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < sp.views; i++ {
			if _, err := h.svc.View(ctx, "", resp.ID); err != nil {
				t.Fatal(err)
			}
		}
	}

	names := func(res *ListResult) string {
		out := make([]string, len(res.Bots))
		for i, b := range res.Bots {
			out[i] = b.Name
		}
		return strings.Join(out, ",")
	}

	tests := []struct {
		name string
		q    ListQuery
		want string
	}{
		{"default name asc", ListQuery{}, "Alpha,Bravo,Charlie"},
		{"name desc", ListQuery{Sort: "name_desc"}, "Charlie,Bravo,Alpha"},
		{"views desc", ListQuery{Sort: "views_desc"}, "Alpha,Charlie,Bravo"},
		{"unknown field falls back", ListQuery{Sort: "sys_pmt_asc"}, "Alpha,Bravo,Charlie"},
		{"search case-insensitive", ListQuery{Search: "dragon"}, "Alpha,Bravo"},
		{"tag any-of", ListQuery{Tags: []string{"scifi"}}, "Bravo,Charlie"},
		{"page", ListQuery{Offset: 1, Limit: 1}, "Bravo"},
		{"offset past end", ListQuery{Offset: 10}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.svc.List(ctx, "", tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if got := names(res); got != tt.want {
				t.Errorf("List() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGet(t *testing.T) {
	h := newHarness(t)
	aliceID, _ := h.fix.SeedUser("alice")
	bobID, _ := h.fix.SeedUser("bobby")
	pub := h.fix.SeedBot("alice", model.StatusPublic)
	priv := h.fix.SeedBot("alice", model.StatusPrivate)
	ctx := context.Background()

	b, err := h.svc.Get(ctx, aliceID, priv)
	if err != nil || b.SysPmt == nil {
		t.Fatalf("owner Get(private) = %+v, %v", b, err)
	}
	for _, who := range []string{"", bobID} {
		if _, err := h.svc.Get(ctx, who, priv); !errors.Is(err, types.ErrNotFound) {
			t.Errorf("Get(private) as %q error = %v, want not found", who, err)
		}
	}
	b, err = h.svc.Get(ctx, "", pub)
	if err != nil || b.SysPmt == nil {
		t.Errorf("anonymous Get(public) should include sys_pmt: %+v, %v", b, err)
	}
	if _, err := h.svc.Get(ctx, "", "999"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("missing bot error = %v", err)
	}
}

func TestUpdate(t *testing.T) {
	h := newHarness(t)
	aliceID, _ := h.fix.SeedUser("alice")
	bobID, _ := h.fix.SeedUser("bobby")
	id := h.fix.SeedBot("alice", model.StatusPublic, "old")
	ctx := context.Background()

	err := h.svc.Update(ctx, aliceID, id, patch(t, map[string]any{
		"name":   "Renamed",
		"status": model.StatusPrivate,
		"tags":   []string{"new"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	b := h.fix.Bots()[id]
	if b.Name != "Renamed" || b.Status != model.StatusPrivate || strings.Join(b.Tags, ",") != "new" {
		t.Errorf("bot after update = %+v", b)
	}
	if b.Greeting != "hello" {
		t.Error("fields not in the patch must be kept")
	}
	if h.tags.UsageCount("new") != 1 {
		t.Error("tag index should be rebuilt after a tag change")
	}

	tests := []struct {
		name   string
		userID string
		id     string
		patch  map[string]any
		kind   error
	}{
		{"author rejected", aliceID, id, map[string]any{"author": "bobby"}, types.ErrValidation},
		{"views rejected", aliceID, id, map[string]any{"views": 1000}, types.ErrValidation},
		{"unknown rejected", aliceID, id, map[string]any{"isAdmin": true}, types.ErrValidation},
		{"empty patch", aliceID, id, map[string]any{}, types.ErrValidation},
		{"bad status", aliceID, id, map[string]any{"status": "hidden"}, types.ErrValidation},
		{"blank name", aliceID, id, map[string]any{"name": "  "}, types.ErrValidation},
		{"non-owner", bobID, id, map[string]any{"name": "Hijack"}, types.ErrForbidden},
		{"missing", aliceID, "999", map[string]any{"name": "x"}, types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.svc.Update(ctx, tt.userID, tt.id, patch(t, tt.patch))
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Update() error = %v, want %v", err, tt.kind)
			}
		})
	}

	after := h.fix.Bots()[id]
	if after.Author != "alice" || after.Name != "Renamed" {
		t.Errorf("rejected updates must not change the bot: %+v", after)
	}
}

func TestUpdate_AvatarReplaceAndReset(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")
	ctx := context.Background()

	req := validRequest("Rin")
	req.Avatar = avatarURI(t)
	resp, err := h.svc.Create(ctx, userID, req)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(h.assetDir, "bots", resp.ID+".png")

	// 同一路径覆盖，文件保留
	if err := h.svc.Update(ctx, userID, resp.ID, patch(t, map[string]any{"avatar": avatarURI(t)})); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("replaced avatar should exist: %v", err)
	}

	if err := h.svc.Update(ctx, userID, resp.ID, patch(t, map[string]any{"avatar": ""})); err != nil {
		t.Fatal(err)
	}
	if got := h.fix.Bots()[resp.ID].Avatar; got != model.DefaultBotAvatar {
		t.Errorf("avatar = %s, want default", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("old avatar file should be removed on reset")
	}

	err = h.svc.Update(ctx, userID, resp.ID, patch(t, map[string]any{"avatar": "https://evil.example.com/x.png"}))
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("non data URI avatar error = %v, want validation", err)
	}
}

func TestUpdate_RenameOrphansOwnership(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")
	id := h.fix.SeedBot("alice", model.StatusPrivate)
	ctx := context.Background()

	err := h.fix.Repos.Update(ctx, func(tx *repository.Tx) error {
		users, err := tx.Users()
		if err != nil {
			return err
		}
		users[userID].Name = "alice2"
		tx.MarkDirty(database.Users)
		return nil
	}, database.Users)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.svc.Update(ctx, userID, id, patch(t, map[string]any{"name": "x"})); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("renamed user update error = %v, want forbidden", err)
	}
	if _, err := h.svc.Get(ctx, userID, id); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("renamed user can no longer see the private bot, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	aliceID, _ := h.fix.SeedUser("alice")
	bobID, _ := h.fix.SeedUser("bobby")
	ctx := context.Background()

	req := validRequest("Rin")
	req.Avatar = avatarURI(t)
	resp, err := h.svc.Create(ctx, aliceID, req)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.svc.Delete(ctx, bobID, resp.ID); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("non-owner delete error = %v, want forbidden", err)
	}
	if err := h.svc.Delete(ctx, aliceID, resp.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.fix.Bots()[resp.ID]; ok {
		t.Error("bot should be deleted")
	}
	if len(h.fix.User(aliceID).Bots) != 0 {
		t.Error("bot id should be removed from user.bots")
	}
	if _, err := os.Stat(filepath.Join(h.assetDir, "bots", resp.ID+".png")); !os.IsNotExist(err) {
		t.Error("avatar file should be removed")
	}
	if err := h.svc.Delete(ctx, aliceID, resp.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("second delete error = %v, want not found", err)
	}
}

func TestView(t *testing.T) {
	h := newHarness(t)
	h.fix.SeedUser("alice")
	pub := h.fix.SeedBot("alice", model.StatusPublic)
	priv := h.fix.SeedBot("alice", model.StatusPrivate)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := h.svc.View(ctx, "", pub)
		if err != nil || got != want {
			t.Fatalf("View() = %d, %v; want %d", got, err, want)
		}
	}
	if _, err := h.svc.View(ctx, "", priv); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("View(private) error = %v, want not found", err)
	}
}

func TestResolveEncoded(t *testing.T) {
	h := newHarness(t)
	h.fix.SeedUser("alice")
	id := h.fix.SeedBot("alice", model.StatusPublic)
	priv := h.fix.SeedBot("alice", model.StatusPrivate)
	ctx := context.Background()

	enc := base64.StdEncoding.EncodeToString([]byte(id))
	res, err := h.svc.ResolveEncoded(ctx, "", enc)
	if err != nil || res.ID != id || res.EncodedID != enc {
		t.Fatalf("ResolveEncoded() = %+v, %v", res, err)
	}

	if _, err := h.svc.ResolveEncoded(ctx, "", "%%%"); !errors.Is(err, types.ErrValidation) {
		t.Errorf("bad encoding error = %v, want validation", err)
	}
	if _, err := h.svc.ResolveEncoded(ctx, "", base64.StdEncoding.EncodeToString([]byte("999"))); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("missing bot error = %v, want not found", err)
	}
	if _, err := h.svc.ResolveEncoded(ctx, "", base64.StdEncoding.EncodeToString([]byte(priv))); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("private bot error = %v, want not found", err)
	}
}

func TestRecentBots(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")
	ctx := context.Background()

	var ids []string
	for i := 0; i < 12; i++ {
		ids = append(ids, h.fix.SeedBot("alice", model.StatusPublic))
	}
	for _, id := range ids {
		if err := h.svc.LogUse(ctx, userID, id); err != nil {
			t.Fatal(err)
		}
	}
	// 再次使用移到最前
	if err := h.svc.LogUse(ctx, userID, ids[5]); err != nil {
		t.Fatal(err)
	}

	recent := h.fix.User(userID).RecentBots
	if len(recent) != model.MaxRecentBots {
		t.Fatalf("recent = %d, want %d", len(recent), model.MaxRecentBots)
	}
	if recent[0] != ids[5] || recent[1] != ids[11] {
		t.Errorf("recent order = %v", recent)
	}

	if err := h.svc.Delete(ctx, userID, ids[11]); err != nil {
		t.Fatal(err)
	}
	list, err := h.svc.Recent(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != model.MaxRecentBots-1 {
		t.Errorf("Recent() = %d bots, want deleted one skipped", len(list))
	}
	if list[0].ID != ids[5] || list[0].SysPmt == nil {
		t.Errorf("first recent = %+v, owner should see sys_pmt", list[0])
	}

	if err := h.svc.LogUse(ctx, userID, ""); !errors.Is(err, types.ErrValidation) {
		t.Errorf("empty botId error = %v", err)
	}
	if err := h.svc.LogUse(ctx, userID, "999"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("missing bot error = %v", err)
	}
}

// hookStorage 在 Save 成功后执行 afterSave
type hookStorage struct {
	file.Storage
	afterSave func()
}

func (s *hookStorage) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	url, err := s.Storage.Save(ctx, key, data, contentType)
	if err == nil && s.afterSave != nil {
		s.afterSave()
	}
	return url, err
}

func TestUpdate_CommitFailureRestoresAvatar(t *testing.T) {
	h := newHarness(t)
	userID, _ := h.fix.SeedUser("alice")
	ctx := context.Background()

	req := validRequest("Rin")
	req.Avatar = avatarURI(t)
	resp, err := h.svc.Create(ctx, userID, req)
	if err != nil {
		t.Fatal(err)
	}
	avatarPath := filepath.Join(h.assetDir, "bots", resp.ID+".png")
	before, err := os.ReadFile(avatarPath)
	if err != nil {
		t.Fatal(err)
	}
	oldAvatar := h.fix.Bots()[resp.ID].Avatar

	local, err := file.NewLocalStorage(h.assetDir, "/assets")
	if err != nil {
		t.Fatal(err)
	}
	// 新头像写入后把 bots.json 换成非空目录，提交时 rename 失败
	botsPath := h.fix.Store.Path(database.Bots)
	backup := botsPath + ".bak"
	storage := &hookStorage{Storage: local, afterSave: func() {
		if err := os.Rename(botsPath, backup); err != nil {
			t.Error(err)
			return
		}
		if err := os.MkdirAll(filepath.Join(botsPath, "blocker"), 0o755); err != nil {
			t.Error(err)
		}
	}}
	images := image.NewProcessor(config.ImageConfig{
		BotMaxBytes: 5 << 20, UserMaxBytes: 2 << 20, BotSize: 512, UserSize: 200,
	})
	svc := NewService(h.fix.Repos, h.tags, file.NewService(storage, h.fix.Logger), images, h.fix.Logger)

	var buf bytes.Buffer
	if err := png.Encode(&buf, stdimage.NewRGBA(stdimage.Rect(0, 0, 64, 64))); err != nil {
		t.Fatal(err)
	}
	newAvatar := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	if err := svc.Update(ctx, userID, resp.ID, patch(t, map[string]any{"avatar": newAvatar})); err == nil {
		t.Fatal("update should fail when the commit fails")
	}

	if err := os.RemoveAll(botsPath); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(backup, botsPath); err != nil {
		t.Fatal(err)
	}

	after, err := os.ReadFile(avatarPath)
	if err != nil {
		t.Fatalf("avatar should still exist: %v", err)
	}
	if !bytes.Equal(after, before) {
		t.Error("avatar file should be restored after a failed commit")
	}
	if got := h.fix.Bots()[resp.ID].Avatar; got != oldAvatar {
		t.Errorf("avatar = %s, want %s", got, oldAvatar)
	}
}
