package redis

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

func validOptions() Options {
	return Options{
		Addr:           "127.0.0.1:1",
		ConnectTimeout: 50 * time.Millisecond,
		RetryInterval:  10 * time.Millisecond,
		MaxWait:        20 * time.Millisecond,
		PingTimeout:    10 * time.Millisecond,
		DialTimeout:    10 * time.Millisecond,
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"valid", func(*Options) {}, false},
		{"missing addr", func(o *Options) { o.Addr = "" }, true},
		{"zero connect timeout", func(o *Options) { o.ConnectTimeout = 0 }, true},
		{"zero retry interval", func(o *Options) { o.RetryInterval = 0 }, true},
		{"zero max wait", func(o *Options) { o.MaxWait = 0 }, true},
		{"zero ping timeout", func(o *Options) { o.PingTimeout = 0 }, true},
		{"negative warn threshold", func(o *Options) { o.WarnThreshold = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.mutate(&o)
			if err := o.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNextWait(t *testing.T) {
	if got := nextWait(2*time.Second, 10*time.Second); got != 4*time.Second {
		t.Errorf("nextWait() = %v, want 4s", got)
	}
	if got := nextWait(8*time.Second, 10*time.Second); got != 10*time.Second {
		t.Errorf("nextWait() = %v, want cap 10s", got)
	}
}

func TestConnectGivesUpAfterTimeout(t *testing.T) {
	start := time.Now()
	_, err := Connect(context.Background(), validOptions(), logger.Nop())
	if err == nil {
		t.Fatal("Connect() to a closed port should fail")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Connect() took %v, should stop near ConnectTimeout", elapsed)
	}
}
