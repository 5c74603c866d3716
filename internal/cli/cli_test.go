package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/api/apitest"
	"github.com/jneless/bkp-drive/internal/config"
)

// testEnv points the CLI at a fake backend with its own config and state.
type testEnv struct {
	t       *testing.T
	srv     *apitest.Server
	cfgPath string
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.BaseURL = srv.BaseURL()
	cfg.StateDir = filepath.Join(dir, "state")
	cfgPath := filepath.Join(dir, "config")
	if err := config.SaveConfig(cfg, cfgPath); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	t.Setenv("BKP_DRIVE_SESSION", "test-shell")
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvToken, "")

	return &testEnv{t: t, srv: srv, cfgPath: cfgPath, dir: dir}
}

// run executes one CLI invocation and returns its stdout.
func (e *testEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	root := NewRootCmd()
	AddCommands(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.cfgPath}, args...))

	err := root.Execute()
	return out.String(), err
}

func (e *testEnv) mustRun(stdin string, args ...string) string {
	e.t.Helper()
	out, err := e.run(stdin, args...)
	if err != nil {
		e.t.Fatalf("%v: error = %v\noutput:\n%s", args, err, out)
	}
	return out
}

func (e *testEnv) login() {
	e.t.Helper()
	out := e.mustRun("secret\n", "login", "-u", "alice")
	if !strings.Contains(out, "Logged in as alice") {
		e.t.Fatalf("login output = %q", out)
	}
}

func TestCommandsRegistered(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, name := range []string{
		"login", "logout", "whoami", "register",
		"ls", "cd", "pwd", "view", "select",
		"mkdir", "upload", "upload-dir", "download", "rm", "preview",
		"config", "completion",
	} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("command %q not registered", name)
			continue
		}
		if cmd.Short == "" {
			t.Errorf("command %q has no short description", name)
		}
	}
}

func TestNotLoggedIn(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run("", "ls")
	if err == nil {
		t.Fatal("ls without login should fail")
	}
	if !api.IsAuthMissing(err) {
		t.Errorf("error = %v, want auth missing", err)
	}
	if !strings.Contains(err.Error(), "bkp-drive login") {
		t.Errorf("error message %q should point at login", err.Error())
	}
	if n := e.srv.CountRequests("GET", "/files"); n != 0 {
		t.Errorf("listing requests = %d, want 0", n)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run("nope\n", "login", "-u", "alice")
	if err == nil {
		t.Fatal("login with wrong password should fail")
	}
	if !strings.Contains(err.Error(), "invalid username or password") {
		t.Errorf("error = %q, want the server's reason", err.Error())
	}
	if _, err := e.run("", "ls"); !api.IsAuthMissing(err) {
		t.Errorf("ls after failed login error = %v, want auth missing", err)
	}
}

func TestLoginBrowseSelectDelete(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Put("a.txt", []byte("a"))
	e.srv.Put("docs/b.txt", []byte("bb"))
	e.srv.Put("docs/sub/c.txt", []byte("ccc"))
	e.login()

	out := e.mustRun("", "whoami")
	if !strings.Contains(out, "alice") {
		t.Errorf("whoami = %q, want alice", out)
	}

	out = e.mustRun("", "ls")
	for _, want := range []string{"docs/", "a.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("ls output missing %q:\n%s", want, out)
		}
	}

	if got := e.mustRun("", "cd", "docs"); strings.TrimSpace(got) != "/docs/" {
		t.Errorf("cd docs = %q, want /docs/", got)
	}
	if got := e.mustRun("", "pwd"); strings.TrimSpace(got) != "/docs/" {
		t.Errorf("pwd = %q, want /docs/", got)
	}
	if got := e.mustRun("", "pwd", "--breadcrumbs"); strings.TrimSpace(got) != "Home > docs" {
		t.Errorf("breadcrumbs = %q, want %q", got, "Home > docs")
	}

	e.mustRun("", "select", "add", "sub")
	out = e.mustRun("", "select", "list")
	if strings.TrimSpace(out) != "docs/sub/" {
		t.Errorf("selection = %q, want docs/sub/", out)
	}

	out = e.mustRun("", "rm", "--selected", "--dry-run")
	if !strings.Contains(out, "docs/sub/c.txt\ndocs/sub/\n") {
		t.Errorf("dry run should list children before the folder:\n%s", out)
	}
	if !e.srv.Has("docs/sub/c.txt") {
		t.Fatal("dry run deleted objects")
	}

	out = e.mustRun("", "rm", "--selected", "--yes")
	if !strings.Contains(out, "Deleted 2 object(s)") {
		t.Errorf("rm output = %q", out)
	}
	if e.srv.Has("docs/sub/c.txt") {
		t.Error("docs/sub/c.txt still exists")
	}
	if !e.srv.Has("docs/b.txt") {
		t.Error("docs/b.txt should not be deleted")
	}
	if got := e.mustRun("", "select", "list"); strings.TrimSpace(got) != "(nothing selected)" {
		t.Errorf("selection after delete = %q", got)
	}
}

func TestCdClearsSelection(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Put("a.txt", []byte("a"))
	e.srv.Put("docs/b.txt", []byte("b"))
	e.login()

	e.mustRun("", "ls")
	e.mustRun("", "select", "all")
	if got := e.mustRun("", "select", "list"); !strings.Contains(got, "a.txt") {
		t.Fatalf("select all = %q", got)
	}

	e.mustRun("", "cd", "docs")
	if got := e.mustRun("", "select", "list"); strings.TrimSpace(got) != "(nothing selected)" {
		t.Errorf("selection after cd = %q, want empty", got)
	}
}

func TestSelectUnknownName(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Put("a.txt", []byte("a"))
	e.login()
	e.mustRun("", "ls")

	if _, err := e.run("", "select", "add", "missing.txt"); err == nil {
		t.Error("selecting a name outside the listing should fail")
	}
}

func TestRmConfirmDeclined(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Put("a.txt", []byte("a"))
	e.login()
	e.mustRun("", "ls")

	out := e.mustRun("n\n", "rm", "a.txt")
	if !strings.Contains(out, "Aborted") {
		t.Errorf("output = %q, want Aborted", out)
	}
	if !e.srv.Has("a.txt") {
		t.Error("a.txt deleted despite declining")
	}
}

func TestRmStrictRefusesPartialScan(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Put("docs/b.txt", []byte("b"))
	e.srv.Put("docs/sub/c.txt", []byte("c"))
	e.srv.FailList["docs/sub/"] = true
	e.login()
	e.mustRun("", "ls")

	_, err := e.run("", "rm", "--strict", "--yes", "docs")
	if !api.IsPartialScan(err) {
		t.Fatalf("error = %v, want partial scan", err)
	}
	if !strings.Contains(err.Error(), "docs/sub/") || !strings.Contains(err.Error(), "nothing was deleted") {
		t.Errorf("message = %q, want skipped path and nothing-deleted note", err.Error())
	}
	if n := len(e.srv.Batches()); n != 0 {
		t.Errorf("batches = %d, want 0", n)
	}

	out := e.mustRun("", "rm", "--yes", "docs")
	if !strings.Contains(out, "could not scan docs/sub/") {
		t.Errorf("best-effort output should warn about docs/sub/:\n%s", out)
	}
	if e.srv.Has("docs/b.txt") {
		t.Error("docs/b.txt should be deleted in best-effort mode")
	}
}

func TestUploadDirAndDownload(t *testing.T) {
	e := newTestEnv(t)
	e.login()

	local := filepath.Join(e.dir, "album")
	if err := os.MkdirAll(filepath.Join(local, "d2"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(local, "x.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(local, "d2", "y.txt"), []byte("yy"), 0644); err != nil {
		t.Fatal(err)
	}

	e.mustRun("", "mkdir", "photos")
	e.mustRun("", "cd", "photos")
	out := e.mustRun("", "upload-dir", local)
	if !strings.Contains(out, "completed: 2 of 2 file(s) uploaded") {
		t.Errorf("upload-dir output = %q", out)
	}
	for _, key := range []string{"photos/album/x.txt", "photos/album/d2/y.txt"} {
		if !e.srv.Has(key) {
			t.Errorf("%s not uploaded; keys = %v", key, e.srv.Keys())
		}
	}

	dest := filepath.Join(e.dir, "y-copy.txt")
	e.mustRun("", "download", "-q", "album/d2/y.txt", "-o", dest)
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "yy" {
		t.Errorf("downloaded = %q, want %q", data, "yy")
	}
	if _, err := os.Stat(dest + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Error("temporary .part file left behind")
	}
}

func TestUploadFailureStopsBatch(t *testing.T) {
	e := newTestEnv(t)
	e.srv.FailUpload["b.txt"] = true
	e.login()

	var paths []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		p := filepath.Join(e.dir, name)
		if err := os.WriteFile(p, []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	out, err := e.run("", append([]string{"upload"}, paths...)...)
	if err == nil {
		t.Fatal("upload should fail")
	}
	if !strings.Contains(out, "failed: 1 of 3 file(s) uploaded") {
		t.Errorf("output = %q", out)
	}
	if !e.srv.Has("a.txt") || e.srv.Has("c.txt") {
		t.Errorf("keys = %v, want only a.txt uploaded", e.srv.Keys())
	}
}

func TestViewModePersists(t *testing.T) {
	e := newTestEnv(t)

	if got := e.mustRun("", "view"); strings.TrimSpace(got) != "list" {
		t.Errorf("default view = %q, want list", got)
	}
	e.mustRun("", "view", "grid")
	if got := e.mustRun("", "view"); strings.TrimSpace(got) != "grid" {
		t.Errorf("view after switch = %q, want grid", got)
	}
	if _, err := e.run("", "view", "tiles"); err == nil {
		t.Error("unknown view mode should fail")
	}
}

func TestSessionScopedLogin(t *testing.T) {
	e := newTestEnv(t)
	e.login()

	t.Setenv("BKP_DRIVE_SESSION", "other-shell")
	if _, err := e.run("", "ls"); !api.IsAuthMissing(err) {
		t.Errorf("other shell error = %v, want auth missing", err)
	}

	t.Setenv("BKP_DRIVE_SESSION", "test-shell")
	e.mustRun("", "logout")
	if _, err := e.run("", "ls"); !api.IsAuthMissing(err) {
		t.Errorf("after logout error = %v, want auth missing", err)
	}
}

func TestRememberedLogin(t *testing.T) {
	e := newTestEnv(t)
	e.mustRun("secret\n", "login", "-u", "alice", "--remember")

	t.Setenv("BKP_DRIVE_SESSION", "other-shell")
	e.mustRun("", "ls")
}

func TestRejectedTokenIsForgotten(t *testing.T) {
	e := newTestEnv(t)
	e.login()

	e.srv.AcceptToken = "rotated"
	if _, err := e.run("", "whoami", "--check"); err == nil {
		t.Fatal("whoami --check with a rejected token should fail")
	}
	if _, err := e.run("", "ls"); !api.IsAuthMissing(err) {
		t.Errorf("error = %v, want auth missing after rejection", err)
	}
}

func TestConfigSetGet(t *testing.T) {
	e := newTestEnv(t)

	e.mustRun("", "config", "set", "thumbnail_workers", "3")
	if got := e.mustRun("", "config", "get", "thumbnail_workers"); strings.TrimSpace(got) != "3" {
		t.Errorf("thumbnail_workers = %q, want 3", got)
	}
	if _, err := e.run("", "config", "set", "default_view", "tiles"); err == nil {
		t.Error("invalid default_view should be rejected")
	}
	if _, err := e.run("", "config", "set", "nope", "1"); err == nil {
		t.Error("unknown key should be rejected")
	}
}

func TestParseFit(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"", 0, 0, false},
		{"800x600", 800, 600, false},
		{"64X64", 64, 64, false},
		{"800", 0, 0, true},
		{"0x10", 0, 0, true},
		{"axb", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseFit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if w != tt.w || h != tt.h {
			t.Errorf("parseFit(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.w, tt.h)
		}
	}
}

func TestLsThumbnails(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Put("a.png", []byte("png"))
	e.srv.Put("clip.mp4", []byte("mp4"))
	e.srv.Put("notes.txt", []byte("txt"))
	e.srv.FailThumb["clip.mp4"] = true
	e.login()

	dir := filepath.Join(e.dir, "thumbs")
	out := e.mustRun("", "ls", "--grid", "--thumbs", dir)
	if !strings.Contains(out, "Thumbnails: 1 saved, 1 unavailable (of 2)") {
		t.Errorf("ls --thumbs output:\n%s", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a.png.thumb.jpg"))
	if err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "processed:image/resize") {
		t.Errorf("thumbnail = %q", data)
	}
}
