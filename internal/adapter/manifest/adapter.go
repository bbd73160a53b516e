// Package manifest is a platform adapter backed by a YAML file describing
// the installed and owned games of one library. It serves DRM-free and
// locally managed libraries, and any platform whose client can export its
// library to a file.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
	"github.com/MrSnakeDoc/gamedeck/internal/adapter/oauth"
	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

var ErrNoRefreshGrant = errors.New("platform has no refresh grant")

// Options holds the process-wide pieces the adapter needs.
type Options struct {
	Callback   oauth.CallbackOptions
	HTTPClient *http.Client
	// Run starts an executable. Defaults to a detached exec.
	Run func(ctx context.Context, exe string, args ...string) error
	// OpenURL hands a launch URI to the desktop. Defaults to oauth.OpenBrowser.
	OpenURL func(ctx context.Context, url string) error
}

type Adapter struct {
	platform domain.Platform
	loader   *Loader
	flow     *oauth.Flow
	token    string
	launch   LaunchProps
	opts     Options
	logger   logger.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

// New loads the manifest once to read its static settings (platform,
// auth, launch). Game lists are re-read on every scan.
func New(path string, opts Options, log logger.Logger) (*Adapter, error) {
	loader := NewLoader(path)
	f, err := loader.Load()
	if err != nil {
		return nil, err
	}

	p, err := domain.ParsePlatform(f.Platform)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	if opts.Run == nil {
		opts.Run = startDetached
	}
	if opts.OpenURL == nil {
		opts.OpenURL = oauth.OpenBrowser
	}

	a := &Adapter{
		platform: p,
		loader:   loader,
		token:    f.Token,
		launch:   f.Launch,
		opts:     opts,
		logger:   log.With(logger.String("platform", p.String())),
	}
	if f.OAuth != nil {
		if err := f.OAuth.Validate(); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		a.flow = oauth.NewFlow(oauth.NewClient(*f.OAuth, opts.HTTPClient), opts.Callback, a.logger)
	}
	return a, nil
}

func (a *Adapter) Platform() domain.Platform { return a.platform }

// Authenticate runs the browser flow when the manifest declares one.
// Otherwise the static token, or a local marker token, is returned.
func (a *Adapter) Authenticate(ctx context.Context) (adapter.Credentials, error) {
	switch {
	case a.flow != nil:
		return a.flow.Authenticate(ctx)
	case a.token != "":
		return adapter.Credentials{AccessToken: a.token}, nil
	default:
		return adapter.Credentials{AccessToken: "local:" + a.platform.String()}, nil
	}
}

func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (adapter.Credentials, error) {
	if a.flow == nil {
		return adapter.Credentials{}, ErrNoRefreshGrant
	}
	return a.flow.RefreshToken(ctx, refreshToken)
}

func (a *Adapter) ListInstalled(context.Context) ([]adapter.InstalledItem, error) {
	f, err := a.loader.Load()
	if err != nil {
		return nil, err
	}
	return mapInstalled(f.Installed), nil
}

func (a *Adapter) ListOwned(context.Context) ([]adapter.OwnedItem, error) {
	f, err := a.loader.Load()
	if err != nil {
		return nil, err
	}
	return mapOwned(f.Owned), nil
}

// Launch opens the launch URI when one is configured, otherwise starts the
// installed executable of nativeAppID.
func (a *Adapter) Launch(ctx context.Context, nativeAppID string) error {
	if a.launch.URI != "" {
		uri := strings.ReplaceAll(a.launch.URI, "{id}", nativeAppID)
		a.logger.Info("launching via uri", logger.String("uri", uri))
		return a.opts.OpenURL(ctx, uri)
	}

	f, err := a.loader.Load()
	if err != nil {
		return err
	}
	for _, item := range f.Installed {
		if strings.TrimSpace(item.ID) != nativeAppID {
			continue
		}
		exe := executablePath(item)
		if exe == "" {
			return fmt.Errorf("%s has no executable", nativeAppID)
		}
		a.logger.Info("launching executable", logger.String("exe", exe))
		return a.opts.Run(ctx, exe, a.launch.Args...)
	}
	return fmt.Errorf("%s is not installed", nativeAppID)
}

func executablePath(item InstalledProps) string {
	exe := strings.TrimSpace(item.Exe)
	if exe == "" || filepath.IsAbs(exe) || item.Path == "" {
		return exe
	}
	return filepath.Join(item.Path, exe)
}

func startDetached(_ context.Context, exe string, args ...string) error {
	cmd := exec.Command(exe, args...)
	cmd.Dir = filepath.Dir(exe)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
