package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrSnakeDoc/gamedeck/internal/ledger"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/optimizer"
	"github.com/MrSnakeDoc/gamedeck/internal/orchestrator"
	"github.com/MrSnakeDoc/gamedeck/internal/registry"
)

// Pinger is implemented by state backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS []string         // IPs allowed to access the server
	TrustProxy   bool             // true if running behind a trusted reverse proxy

	Background   context.Context            // outlives requests, canceled on shutdown
	Orchestrator *orchestrator.Orchestrator // scan, auth and launch cycles
	Games        *registry.Registry         // canonical game registry
	Content      *ledger.Ledger             // owned content per platform
	Optimizer    *optimizer.Optimizer       // platform recommendations
	StateBackend string                     // "file" | "sqlite" | "redis"
	Backend      Pinger                     // nil when the backend has no health check
	ScanTrigger  chan struct{}              // Channel to trigger a manual scan cycle
	Gatherer     prometheus.Gatherer        // served on /metrics, nil disables it
}
