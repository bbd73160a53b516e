package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter/oauth"
	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

const gogManifest = `---
platform: GOG
installed:
  - id: "1207658924"
    name: The Witcher 3
    path: /games/witcher3
    exe: bin/x64/witcher3.exe
    size: 50000000000
    version: "4.04"
  - id: "1453375253"
    app_name: celeste
    path: /games/celeste
  - name: No Id
    path: /games/none
owned:
  - id: "1207658924"
    name: The Witcher 3
    content: [hearts-of-stone, blood-and-wine]
  - id: "1423049311"
    name: Cyberpunk 2077
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoaderExpandsTemplateVariables(t *testing.T) {
	t.Setenv("GAMEDECK_TEST_CLIENT", "client-from-env")
	path := writeManifest(t, `---
platform: xbox
oauth:
  client_id: "{{ GAMEDECK_TEST_CLIENT }}"
  client_secret: "{{GAMEDECK_TEST_UNSET}}"
  auth_url: https://login.example.test/authorize
  token_url: https://login.example.test/token
`)

	f, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.OAuth == nil || f.OAuth.ClientID != "client-from-env" {
		t.Errorf("OAuth = %+v, want client id from env", f.OAuth)
	}
	if f.OAuth.ClientSecret != "" {
		t.Errorf("unset variable expanded to %q", f.OAuth.ClientSecret)
	}
}

func TestLoaderErrors(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load(); err == nil {
		t.Error("Load() of a missing file should fail")
	}
	if _, err := NewLoader(writeManifest(t, "installed: [")).Load(); err == nil {
		t.Error("Load() of invalid yaml should fail")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", gogManifest, false},
		{"no platform", "installed: []\n", true},
		{"incomplete oauth", "platform: xbox\noauth:\n  client_id: x\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(writeManifest(t, tt.content), Options{}, logger.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListInstalledAndOwned(t *testing.T) {
	a, err := New(writeManifest(t, gogManifest), Options{}, logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Platform() != domain.PlatformGOG {
		t.Errorf("Platform() = %q, want gog", a.Platform())
	}

	installed, err := a.ListInstalled(context.Background())
	if err != nil {
		t.Fatalf("ListInstalled() error = %v", err)
	}
	if len(installed) != 2 {
		t.Fatalf("ListInstalled() = %d items, want 2 (entry without id skipped)", len(installed))
	}
	if installed[0].SizeBytes != 50000000000 || installed[0].Version != "4.04" {
		t.Errorf("first item = %+v", installed[0])
	}
	if installed[1].Name() != "celeste" {
		t.Errorf("Name() = %q, want app name fallback", installed[1].Name())
	}

	owned, err := a.ListOwned(context.Background())
	if err != nil {
		t.Fatalf("ListOwned() error = %v", err)
	}
	if len(owned) != 2 || len(owned[0].ContentIDs) != 2 {
		t.Errorf("ListOwned() = %+v", owned)
	}
}

func TestAuthenticateWithoutOAuth(t *testing.T) {
	ctx := context.Background()

	local, _ := New(writeManifest(t, gogManifest), Options{}, logger.Nop())
	creds, err := local.Authenticate(ctx)
	if err != nil || creds.AccessToken != "local:gog" {
		t.Errorf("Authenticate() = %+v, %v", creds, err)
	}
	if _, err := local.RefreshToken(ctx, "x"); !errors.Is(err, ErrNoRefreshGrant) {
		t.Errorf("RefreshToken() error = %v, want ErrNoRefreshGrant", err)
	}

	static, _ := New(writeManifest(t, "platform: steam\ntoken: web-api-key\n"), Options{}, logger.Nop())
	creds, _ = static.Authenticate(ctx)
	if creds.AccessToken != "web-api-key" {
		t.Errorf("AccessToken = %q, want static token", creds.AccessToken)
	}
}

func TestAuthenticateWithOAuthHonorsTimeout(t *testing.T) {
	path := writeManifest(t, `platform: playstation
oauth:
  client_id: gamedeck
  auth_url: https://login.example.test/authorize
  token_url: https://login.example.test/token
`)
	a, err := New(path, Options{Callback: oauth.CallbackOptions{
		PortStart:   oauth.DefaultPortStart,
		Timeout:     20 * time.Millisecond,
		OpenBrowser: func(context.Context, string) error { return nil },
	}}, logger.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := a.Authenticate(context.Background()); !errors.Is(err, domain.ErrAuthTimeout) {
		t.Errorf("Authenticate() error = %v, want ErrAuthTimeout", err)
	}
}

func TestLaunch(t *testing.T) {
	ctx := context.Background()

	var ranExe string
	var ranArgs []string
	a, _ := New(writeManifest(t, gogManifest+"launch:\n  args: [--skip-intro]\n"), Options{
		Run: func(_ context.Context, exe string, args ...string) error {
			ranExe, ranArgs = exe, args
			return nil
		},
	}, logger.Nop())

	if err := a.Launch(ctx, "1207658924"); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if want := filepath.Join("/games/witcher3", "bin/x64/witcher3.exe"); ranExe != want {
		t.Errorf("ran %q, want %q", ranExe, want)
	}
	if len(ranArgs) != 1 || ranArgs[0] != "--skip-intro" {
		t.Errorf("args = %v", ranArgs)
	}

	if err := a.Launch(ctx, "1453375253"); err == nil {
		t.Error("Launch() of an entry without exe should fail")
	}
	if err := a.Launch(ctx, "404"); err == nil {
		t.Error("Launch() of an unknown id should fail")
	}
}

func TestLaunchURI(t *testing.T) {
	var opened string
	a, _ := New(writeManifest(t, "platform: steam\nlaunch:\n  uri: steam://rungameid/{id}\n"), Options{
		OpenURL: func(_ context.Context, url string) error {
			opened = url
			return nil
		},
	}, logger.Nop())

	if err := a.Launch(context.Background(), "620"); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if opened != "steam://rungameid/620" {
		t.Errorf("opened %q", opened)
	}
}
