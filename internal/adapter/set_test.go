package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
)

type nopAdapter struct{ platform domain.Platform }

func (n nopAdapter) Platform() domain.Platform { return n.platform }
func (nopAdapter) Authenticate(context.Context) (Credentials, error) {
	return Credentials{}, nil
}
func (nopAdapter) RefreshToken(context.Context, string) (Credentials, error) {
	return Credentials{}, nil
}
func (nopAdapter) ListInstalled(context.Context) ([]InstalledItem, error) { return nil, nil }
func (nopAdapter) ListOwned(context.Context) ([]OwnedItem, error)         { return nil, nil }
func (nopAdapter) Launch(context.Context, string) error                   { return nil }

func TestSetLookup(t *testing.T) {
	s, err := NewSet(nopAdapter{"steam"}, nopAdapter{"epic"})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	if _, err := s.Get("steam"); err != nil {
		t.Errorf("Get(steam) error = %v", err)
	}

	_, err = s.Get("gog")
	if !errors.Is(err, domain.ErrAdapterUnavailable) {
		t.Errorf("Get(gog) error = %v, want ErrAdapterUnavailable", err)
	}

	got := s.Platforms()
	if len(got) != 2 || got[0] != "epic" || got[1] != "steam" {
		t.Errorf("Platforms() = %v, want [epic steam]", got)
	}
}

func TestSetRejectsDuplicates(t *testing.T) {
	if _, err := NewSet(nopAdapter{"steam"}, nopAdapter{"steam"}); err == nil {
		t.Error("NewSet() with duplicate platforms should fail")
	}
	if _, err := NewSet(nopAdapter{""}); err == nil {
		t.Error("NewSet() with empty platform should fail")
	}
}

func TestNilSet(t *testing.T) {
	var s *Set
	if s.Len() != 0 || len(s.Platforms()) != 0 {
		t.Error("nil Set should be empty")
	}
	if _, err := s.Get("steam"); !errors.Is(err, domain.ErrAdapterUnavailable) {
		t.Errorf("nil Set Get() error = %v", err)
	}
}

func TestInstalledItemName(t *testing.T) {
	if got := (InstalledItem{DisplayName: "Hades", AppName: "hades_app"}).Name(); got != "Hades" {
		t.Errorf("Name() = %q, want display name", got)
	}
	if got := (InstalledItem{AppName: "hades_app"}).Name(); got != "hades_app" {
		t.Errorf("Name() = %q, want app name fallback", got)
	}
}

func TestRecover(t *testing.T) {
	call := func(fn func()) (err error) {
		defer Recover(&err)
		fn()
		return nil
	}

	err := call(func() {
		var m map[string]int
		m["x"] = 1
	})
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("error = %v, want ErrPanic", err)
	}
	if err := call(func() {}); err != nil {
		t.Errorf("error = %v, want nil", err)
	}
}
