package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/state"
)

const (
	steam = domain.PlatformSteam
	epic  = domain.PlatformEpic
	gog   = domain.PlatformGOG
)

type failingBackend struct{ state.Memory }

func (*failingBackend) Save(context.Context, state.Record, []byte) error {
	return errors.New("read-only filesystem")
}

type flakyBackend struct {
	*state.Memory
	loadErr error
}

func (b *flakyBackend) Load(ctx context.Context, r state.Record) ([]byte, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.Memory.Load(ctx, r)
}

func newTestRegistry() (*Registry, *state.Memory) {
	backend := state.NewMemory()
	return New(backend, logger.Nop()), backend
}

func mustIngest(t *testing.T, r *Registry, p domain.Platform, id, name string, inst *domain.Installation) string {
	t.Helper()
	key, err := r.Ingest(context.Background(), p, id, name, inst)
	if err != nil {
		t.Fatalf("Ingest(%s, %s, %q) error = %v", p, id, name, err)
	}
	return key
}

func TestIngestIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry()
	inst := &domain.Installation{InstallPath: "/games/hades", ExecutablePath: "/games/hades/Hades.exe", AppID: "1145360", Version: "1.0", SizeBytes: 1 << 30}

	mustIngest(t, r, steam, "1145360", "Hades", inst)
	mustIngest(t, r, steam, "1145360", "Hades", inst)

	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	g, err := r.Get("hades")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(g.Bindings) != 1 {
		t.Errorf("Bindings = %v, want 1 entry", g.Bindings)
	}
	if len(g.Installations) != 1 {
		t.Errorf("Installations = %v, want 1 entry", g.Installations)
	}
	if got := g.Installations[steam].Platform; got != steam {
		t.Errorf("Installation.Platform = %q, want steam", got)
	}
}

func TestIngestMergesCanonicalNames(t *testing.T) {
	r, _ := newTestRegistry()

	k1 := mustIngest(t, r, steam, "1", "Destiny 2", nil)
	k2 := mustIngest(t, r, epic, "x", "destiny 2 ", nil)

	if k1 != k2 {
		t.Fatalf("keys differ: %q vs %q", k1, k2)
	}
	if got := r.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	g, _ := r.Get("DESTINY 2")
	if len(g.Bindings) != 2 {
		t.Fatalf("Bindings = %v, want 2", g.Bindings)
	}
	if g.Name != "Destiny 2" {
		t.Errorf("Name = %q, want first sighting's name", g.Name)
	}
	want := []domain.Platform{steam, epic}
	got, _ := r.Platforms(k1)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Platforms() = %v, want %v", got, want)
	}
}

func TestIngestRejectsEmptyName(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.Ingest(context.Background(), steam, "1", "   ", nil)
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("Ingest() error = %v, want ErrInvalidName", err)
	}
	if r.Count() != 0 {
		t.Error("empty name should not create a game")
	}
}

func TestIngestReplacesInstallationWholesale(t *testing.T) {
	r, _ := newTestRegistry()
	mustIngest(t, r, gog, "g1", "Celeste", &domain.Installation{InstallPath: "/a", ExecutablePath: "/a/c.exe", Version: "1.3", SizeBytes: 500})
	mustIngest(t, r, gog, "g2", "Celeste", &domain.Installation{InstallPath: "/b", SizeBytes: 100})

	g, _ := r.Get("celeste")
	inst := g.Installations[gog]
	if inst.InstallPath != "/b" || inst.ExecutablePath != "" || inst.Version != "" || inst.SizeBytes != 100 {
		t.Errorf("Installation = %+v, want the second sighting only", inst)
	}
	b, _ := g.Binding(gog)
	if b.NativeID != "g2" {
		t.Errorf("NativeID = %q, want g2", b.NativeID)
	}

	// A sighting without installation keeps the last known one.
	mustIngest(t, r, gog, "g2", "Celeste", nil)
	g, _ = r.Get("celeste")
	if g.Installations[gog].InstallPath != "/b" {
		t.Error("ownership-only sighting dropped the installation")
	}
}

func TestActivePlatform(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	mustIngest(t, r, steam, "1", "Hollow Knight", nil)
	mustIngest(t, r, gog, "2", "Hollow Knight", nil)

	g, _ := r.Get("hollow knight")
	if g.ActivePlatform != steam {
		t.Fatalf("ActivePlatform = %q, want first writer steam", g.ActivePlatform)
	}

	if err := r.SetActivePlatform(ctx, "hollow knight", gog); err != nil {
		t.Fatalf("SetActivePlatform() error = %v", err)
	}
	g, _ = r.Get("hollow knight")
	if g.ActivePlatform != gog {
		t.Errorf("ActivePlatform = %q, want gog", g.ActivePlatform)
	}

	tests := []struct {
		name string
		key  string
		p    domain.Platform
		want error
	}{
		{"unbound platform", "hollow knight", epic, domain.ErrUnboundPlatform},
		{"unknown game", "silksong", steam, domain.ErrUnknownGame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.SetActivePlatform(ctx, tt.key, tt.p)
			if !errors.Is(err, tt.want) {
				t.Errorf("SetActivePlatform() error = %v, want %v", err, tt.want)
			}
		})
	}

	g, _ = r.Get("hollow knight")
	if g.ActivePlatform != gog {
		t.Error("failed SetActivePlatform changed the active platform")
	}
}

func TestListByPlatform(t *testing.T) {
	r, _ := newTestRegistry()
	mustIngest(t, r, steam, "1", "Portal 2", nil)
	mustIngest(t, r, steam, "2", "Celeste", nil)
	mustIngest(t, r, epic, "3", "Control", nil)
	mustIngest(t, r, epic, "4", "celeste", nil)

	tests := []struct {
		p    domain.Platform
		want []string
	}{
		{"", []string{"celeste", "control", "portal 2"}},
		{steam, []string{"celeste", "portal 2"}},
		{epic, []string{"celeste", "control"}},
		{gog, []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			got := r.ListByPlatform(tt.p)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("ListByPlatform(%q) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry()
	mustIngest(t, r, steam, "1", "Tunic", &domain.Installation{InstallPath: "/t"})

	g, _ := r.Get("tunic")
	g.ActivePlatform = epic
	g.Bindings[0].NativeID = "mutated"
	g.Installations[steam] = domain.Installation{}

	again, _ := r.Get("tunic")
	if again.ActivePlatform != steam || again.Bindings[0].NativeID != "1" || again.Installations[steam].InstallPath != "/t" {
		t.Errorf("registry state leaked through Get(): %+v", again)
	}

	if _, err := r.Get("nope"); !errors.Is(err, domain.ErrUnknownGame) {
		t.Errorf("Get() error = %v, want ErrUnknownGame", err)
	}
}

func TestUnbindAndRemove(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry()
	mustIngest(t, r, steam, "1", "Outer Wilds", &domain.Installation{InstallPath: "/s"})
	mustIngest(t, r, epic, "2", "Outer Wilds", &domain.Installation{InstallPath: "/e"})

	if err := r.Unbind(ctx, "outer wilds", steam); err != nil {
		t.Fatalf("Unbind() error = %v", err)
	}
	g, _ := r.Get("outer wilds")
	if g.IsBound(steam) || len(g.Installations) != 1 {
		t.Errorf("steam still present after unbind: %+v", g)
	}
	if g.ActivePlatform != epic {
		t.Errorf("ActivePlatform = %q, want epic to take over", g.ActivePlatform)
	}
	if err := r.Unbind(ctx, "outer wilds", steam); !errors.Is(err, domain.ErrUnboundPlatform) {
		t.Errorf("second Unbind() error = %v, want ErrUnboundPlatform", err)
	}

	inst, ok, err := r.ActiveInstallation("outer wilds")
	if err != nil || !ok || inst.InstallPath != "/e" {
		t.Errorf("ActiveInstallation() = %+v, %v, %v", inst, ok, err)
	}

	if err := r.Remove(ctx, "Outer Wilds"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if r.Count() != 0 {
		t.Error("game still present after Remove()")
	}
	if err := r.Remove(ctx, "outer wilds"); !errors.Is(err, domain.ErrUnknownGame) {
		t.Errorf("Remove() error = %v, want ErrUnknownGame", err)
	}
}

func TestIngestBatchKeepsListOrder(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRegistry()

	res, err := r.IngestBatch(ctx, epic, []Sighting{
		{NativeAppID: "a", DisplayName: "Fortnite"},
		{NativeAppID: "b", DisplayName: ""},
		{NativeAppID: "c", DisplayName: "Alan Wake 2", Installation: &domain.Installation{InstallPath: "/aw2"}},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if fmt.Sprint(res.Keys) != "[fortnite alan wake 2]" {
		t.Errorf("Keys = %v", res.Keys)
	}

	data, _ := backend.Load(ctx, state.RecordGames)
	if !bytes.Contains(data, []byte(`"alan wake 2"`)) {
		t.Errorf("batch was not persisted: %s", data)
	}
}

func TestConcurrentIngestSameKey(t *testing.T) {
	r, _ := newTestRegistry()
	platforms := []domain.Platform{steam, epic, gog, domain.PlatformXbox, domain.PlatformPlayStation}

	var wg sync.WaitGroup
	for _, p := range platforms {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(p domain.Platform, i int) {
				defer wg.Done()
				_, _ = r.Ingest(context.Background(), p, fmt.Sprintf("%s-%d", p, i), "Stardew Valley", nil)
			}(p, i)
		}
	}
	wg.Wait()

	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
	g, _ := r.Get("stardew valley")
	if len(g.Bindings) != len(platforms) {
		t.Errorf("Bindings = %d, want %d (no lost updates)", len(g.Bindings), len(platforms))
	}
}

func TestPersistenceFailureKeepsMutation(t *testing.T) {
	r := New(&failingBackend{}, logger.Nop())

	_, err := r.Ingest(context.Background(), steam, "1", "Inside", nil)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("Ingest() error = %v, want ErrPersistence", err)
	}
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) || pe.Record != string(state.RecordGames) {
		t.Errorf("error = %#v, want PersistenceError on %s", err, state.RecordGames)
	}
	if _, err := r.Get("inside"); err != nil {
		t.Errorf("in-memory ingest lost: %v", err)
	}
}

func TestFailedRestoreKeepsStoredGames(t *testing.T) {
	ctx := context.Background()
	seed, mem := newTestRegistry()
	mustIngest(t, seed, steam, "620", "Portal 2", nil)
	committed, _ := mem.Load(ctx, state.RecordGames)

	backend := &flakyBackend{Memory: mem, loadErr: errors.New("i/o timeout")}
	r := New(backend, logger.Nop())
	if _, err := r.Restore(ctx); err == nil {
		t.Fatal("Restore() error = nil, want load failure")
	}
	_, err := r.Ingest(ctx, gog, "g1", "Hades", nil)
	if !errors.Is(err, state.ErrUnread) {
		t.Fatalf("Ingest() error = %v, want ErrUnread", err)
	}
	if stored, _ := mem.Load(ctx, state.RecordGames); !bytes.Equal(stored, committed) {
		t.Errorf("stored games = %s, want %s untouched", stored, committed)
	}

	backend.loadErr = nil
	if _, err := r.Restore(ctx); err != nil {
		t.Fatalf("Restore() retry error = %v", err)
	}
	mustIngest(t, r, gog, "g1", "Hades", nil)
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want restored game plus new one", r.Count())
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRegistry()
	mustIngest(t, r, epic, "e1", "Hades", &domain.Installation{InstallPath: "/e/hades", ExecutablePath: "/e/hades/Hades.exe", AppID: "e1", Version: "1.38", SizeBytes: 12345})
	mustIngest(t, r, steam, "s1", "Hades", nil)
	mustIngest(t, r, gog, "g1", "Celeste", nil)
	if err := r.SetActivePlatform(ctx, "hades", steam); err != nil {
		t.Fatalf("SetActivePlatform() error = %v", err)
	}

	want, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	restored := New(backend, logger.Nop())
	n, err := restored.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Restore() = %d, want 2", n)
	}
	got, _ := restored.Snapshot()
	if !bytes.Equal(got, want) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", got, want)
	}

	g, _ := restored.Get("hades")
	if g.Bindings[0].Platform != epic {
		t.Errorf("binding order lost: %v", g.Platforms())
	}
}

func TestRestoreWithoutBindingOrder(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemory()
	legacy := `{"doom":{"bindings":{"steam":"2280","gog":"1"},"activePlatform":"xbox"}}`
	if err := backend.Save(ctx, state.RecordGames, []byte(legacy)); err != nil {
		t.Fatal(err)
	}

	r := New(backend, logger.Nop())
	if _, err := r.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	g, err := r.Get("doom")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fmt.Sprint(g.Platforms()) != "[gog steam]" {
		t.Errorf("Platforms() = %v, want sorted fallback", g.Platforms())
	}
	if g.ActivePlatform != gog {
		t.Errorf("ActivePlatform = %q, want first binding for an unbound active", g.ActivePlatform)
	}
	if g.Name != "doom" {
		t.Errorf("Name = %q, want key fallback", g.Name)
	}
}
