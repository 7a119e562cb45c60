package service

import (
	"context"
	"fmt"
	"time"
)

// Pinger is any dependency that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService defines the interface for checking application health
type HealthService interface {
	Check(ctx context.Context) map[string]string
}

// healthService is the concrete implementation of the HealthService
type healthService struct {
	deps map[string]Pinger
}

// Check performs health checks on all critical dependencies
func (s healthService) Check(ctx context.Context) map[string]string {
	healthStatus := make(map[string]string, len(s.deps))

	for name, dep := range s.deps {
		// Use a timeout to prevent the health check from hanging
		depCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := dep.Ping(depCtx); err != nil {
			healthStatus[name] = fmt.Sprintf("error: %s", err.Error())
		} else {
			healthStatus[name] = "ok"
		}
		cancel()
	}

	return healthStatus
}

// NewHealthService creates the readiness checker over the named dependencies
func NewHealthService(deps map[string]Pinger) HealthService {
	return &healthService{deps: deps}
}
