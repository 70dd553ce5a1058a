package health

import (
	"context"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. Messages are still answered.
	Degraded Status = "degraded"
	// Unhealthy indicates the state store is unusable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckDegraded indicates a component running on its fallback.
	CheckDegraded CheckResult = "degraded"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentStateStore  = "state_store"
	ComponentVectorStore = "vector_store"
	ComponentEmbedding   = "embedding"
	ComponentLLM         = "llm"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Deps are the checked components. Only States is required.
type Deps struct {
	States    Pinger
	Vectors   Pinger
	Embedding Checker
	LLM       Checker
}

// Service coordinates health checks.
type Service struct {
	deps   Deps
	logger *zap.Logger
}

// New creates a Service.
func New(deps Deps, logger *zap.Logger) *Service {
	return &Service{deps: deps, logger: logger}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[ComponentStateStore] = s.checkStates(ctx)
	if s.deps.Vectors != nil {
		checks[ComponentVectorStore] = s.result(ComponentVectorStore, s.deps.Vectors.Ping(ctx))
	}
	if s.deps.Embedding != nil {
		checks[ComponentEmbedding] = s.result(ComponentEmbedding, s.deps.Embedding.HealthCheck(ctx))
	}
	if s.deps.LLM != nil {
		checks[ComponentLLM] = s.result(ComponentLLM, s.deps.LLM.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}
	if checks[ComponentStateStore] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

// checkStates probes a degraded fallback store first, so a recovered remote
// store takes over again.
func (s *Service) checkStates(ctx context.Context) CheckResult {
	st, ok := s.deps.States.(StateStore)
	if !ok {
		return s.result(ComponentStateStore, s.deps.States.Ping(ctx))
	}
	if st.Degraded() {
		if err := st.Probe(ctx); err != nil || st.Degraded() {
			s.logger.Warn("State store still degraded", zap.Error(err))
			return CheckDegraded
		}
	}
	return s.result(ComponentStateStore, st.Ping(ctx))
}

func (s *Service) result(component string, err error) CheckResult {
	if err != nil {
		s.logger.Warn("Health check failed", zap.String("component", component), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
