package ledger

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

type failingBackend struct{ state.Memory }

func (*failingBackend) Save(context.Context, state.Record, []byte) error {
	return errors.New("quota exceeded")
}

func TestRegisterOwnedUnions(t *testing.T) {
	ctx := context.Background()
	l := New(state.NewMemory(), logger.Nop())

	added, err := l.RegisterOwned(ctx, "Cyberpunk 2077", domain.PlatformGOG, []string{"phantom-liberty", "redmod"})
	if err != nil || added != 2 {
		t.Fatalf("RegisterOwned() = %d, %v; want 2, nil", added, err)
	}
	added, err = l.RegisterOwned(ctx, "cyberpunk 2077 ", domain.PlatformGOG, []string{"redmod", "artbook", " "})
	if err != nil || added != 1 {
		t.Fatalf("second RegisterOwned() = %d, %v; want 1, nil", added, err)
	}

	got := l.OwnedFor("CYBERPUNK 2077", domain.PlatformGOG)
	want := []string{"artbook", "phantom-liberty", "redmod"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("OwnedFor() = %v, want %v", got, want)
	}
	if n := l.OwnedCount("cyberpunk 2077", domain.PlatformGOG); n != 3 {
		t.Errorf("OwnedCount() = %d, want 3", n)
	}
}

func TestOwnedForEmpty(t *testing.T) {
	l := New(state.NewMemory(), logger.Nop())
	if got := l.OwnedFor("unknown", domain.PlatformSteam); got == nil || len(got) != 0 {
		t.Errorf("OwnedFor() = %#v, want empty non-nil slice", got)
	}
	if got := l.OwnedCount("unknown", domain.PlatformSteam); got != 0 {
		t.Errorf("OwnedCount() = %d, want 0", got)
	}
}

func TestRegisterOwnedRejectsBlankGame(t *testing.T) {
	l := New(state.NewMemory(), logger.Nop())
	if _, err := l.RegisterOwned(context.Background(), "  ", domain.PlatformSteam, []string{"x"}); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("RegisterOwned() error = %v, want ErrInvalidName", err)
	}
}

func TestRemoveOwned(t *testing.T) {
	ctx := context.Background()
	l := New(state.NewMemory(), logger.Nop())
	if _, err := l.RegisterOwned(ctx, "Elden Ring", domain.PlatformSteam, []string{"sote", "nightreign"}); err != nil {
		t.Fatal(err)
	}

	removed, err := l.RemoveOwned(ctx, "elden ring", domain.PlatformSteam, []string{"nightreign", "missing"})
	if err != nil || removed != 1 {
		t.Fatalf("RemoveOwned() = %d, %v; want 1, nil", removed, err)
	}
	if got := l.OwnedFor("elden ring", domain.PlatformSteam); fmt.Sprint(got) != "[sote]" {
		t.Errorf("OwnedFor() = %v, want [sote]", got)
	}

	removed, err = l.RemoveOwned(ctx, "never seen", domain.PlatformSteam, []string{"x"})
	if err != nil || removed != 0 {
		t.Errorf("RemoveOwned() on unknown game = %d, %v", removed, err)
	}
}

func TestSharedInstall(t *testing.T) {
	ctx := context.Background()
	l := New(state.NewMemory(), logger.Nop())

	err := l.SetupSharedInstall(ctx, "The Witcher 3", []domain.Platform{domain.PlatformSteam, domain.PlatformGOG}, "/mnt/games/witcher3")
	if err != nil {
		t.Fatalf("SetupSharedInstall() error = %v", err)
	}
	got := l.SharedInstall("the witcher 3")
	if len(got) != 2 || got[domain.PlatformGOG] != "/mnt/games/witcher3" {
		t.Errorf("SharedInstall() = %v", got)
	}

	if err := l.SetupSharedInstall(ctx, "The Witcher 3", []domain.Platform{domain.PlatformSteam}, " "); err == nil {
		t.Error("SetupSharedInstall() with empty path should fail")
	}
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	l := New(state.NewMemory(), logger.Nop())
	_, _ = l.RegisterOwned(ctx, "Halo", domain.PlatformXbox, []string{"odst"})

	if err := l.Forget(ctx, "HALO"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if got := l.Owned("halo"); len(got) != 0 {
		t.Errorf("Owned() after Forget = %v", got)
	}
}

func TestConcurrentRegister(t *testing.T) {
	ctx := context.Background()
	l := New(state.NewMemory(), logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = l.RegisterOwned(ctx, "Warframe", domain.PlatformSteam, []string{fmt.Sprintf("dlc-%02d", i)})
		}(i)
	}
	wg.Wait()

	if n := l.OwnedCount("warframe", domain.PlatformSteam); n != 50 {
		t.Errorf("OwnedCount() = %d, want 50", n)
	}
}

func TestPersistenceFailureKeepsMutation(t *testing.T) {
	l := New(&failingBackend{}, logger.Nop())

	_, err := l.RegisterOwned(context.Background(), "Hades", domain.PlatformEpic, []string{"soundtrack"})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("RegisterOwned() error = %v, want ErrPersistence", err)
	}
	if n := l.OwnedCount("hades", domain.PlatformEpic); n != 1 {
		t.Errorf("OwnedCount() = %d, want in-memory union kept", n)
	}
}

type corruptBackend struct{ *state.Memory }

func (corruptBackend) Load(context.Context, state.Record) ([]byte, error) {
	return []byte(`{"hades":`), nil
}

func TestFailedRestoreKeepsStoredLedger(t *testing.T) {
	ctx := context.Background()
	mem := state.NewMemory()
	l := New(corruptBackend{mem}, logger.Nop())

	if _, err := l.Restore(ctx); err == nil {
		t.Fatal("Restore() error = nil, want decode failure")
	}
	_, err := l.RegisterOwned(ctx, "Hades", domain.PlatformEpic, []string{"soundtrack"})
	if !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, state.ErrUnread) {
		t.Fatalf("RegisterOwned() error = %v, want ErrPersistence wrapping ErrUnread", err)
	}
	if stored, _ := mem.Load(ctx, state.RecordLedger); stored != nil {
		t.Errorf("ledger record written despite unread copy: %s", stored)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemory()
	l := New(backend, logger.Nop())
	_, _ = l.RegisterOwned(ctx, "Destiny 2", domain.PlatformSteam, []string{"witch-queen", "lightfall", "final-shape"})
	_, _ = l.RegisterOwned(ctx, "Destiny 2", domain.PlatformEpic, []string{"lightfall"})
	_, _ = l.RegisterOwned(ctx, "Celeste", domain.PlatformGOG, nil)
	if err := l.SetupSharedInstall(ctx, "Destiny 2", []domain.Platform{domain.PlatformSteam, domain.PlatformEpic}, "/games/d2"); err != nil {
		t.Fatal(err)
	}

	want, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !bytes.Contains(want, []byte(`"owned":{"epic":["lightfall"],"steam":["final-shape","lightfall","witch-queen"]}`)) {
		t.Errorf("unexpected snapshot layout: %s", want)
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
}
