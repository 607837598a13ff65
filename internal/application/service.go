package application

import (
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
)

type Service struct {
	cfg     Config
	users   ports.UserStore
	outbox  ports.OutboxRepository
	cache   ports.Cache
	tokens  ports.TokenVerifier
	metrics ports.Metrics
	logger  *slog.Logger
	nowFn   func() time.Time
}

type Dependencies struct {
	Config  Config
	Users   ports.UserStore
	Outbox  ports.OutboxRepository
	Cache   ports.Cache
	Tokens  ports.TokenVerifier
	Metrics ports.Metrics
	Logger  *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M04-User-Directory-Service"
	}
	if cfg.LookupRateWindow <= 0 {
		cfg.LookupRateWindow = time.Minute
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:     cfg,
		users:   deps.Users,
		outbox:  deps.Outbox,
		cache:   deps.Cache,
		tokens:  deps.Tokens,
		metrics: metrics,
		logger:  logger.With("module", "application.service", "layer", "application"),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveDisclosure(domain.FieldKind, domain.Disclosure) {}
func (noopMetrics) ObserveOperation(string, string, time.Time)            {}
