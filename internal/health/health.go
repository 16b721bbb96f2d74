// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package health provides the health report served on /health
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// StatusHealthy represents healthy status
	StatusHealthy = "healthy"
	// StatusUnhealthy represents unhealthy status
	StatusUnhealthy = "unhealthy"
	// StatusDegraded represents degraded status
	StatusDegraded = "degraded"
	// DefaultTimeout is the default timeout for health checks
	DefaultTimeout = 5 * time.Second
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Status    string                 `json:"status"`
	Latency   time.Duration          `json:"latency"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Version      string                 `json:"version"`
	Uptime       string                 `json:"uptime"`
	Dependencies map[string]CheckResult `json:"dependencies"`
	Metadata     map[string]interface{} `json:"metadata"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Checker interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc is a function adapter for the Checker interface
type CheckerFunc func(ctx context.Context) CheckResult

// Check implements the Checker interface
func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Manager manages health checks for a service
type Manager struct {
	serviceName string
	version     string
	startTime   time.Time
	timeout     time.Duration
	logger      *zap.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewManager creates a new health check manager
func NewManager(serviceName, version string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		checkers:    make(map[string]Checker),
		timeout:     DefaultTimeout,
		logger:      logger,
	}
}

// SetTimeout sets the timeout for health checks
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// AddChecker adds or replaces a health checker
func (m *Manager) AddChecker(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// AddCheckerFunc adds a health checker function
func (m *Manager) AddCheckerFunc(name string, checkFunc func(ctx context.Context) CheckResult) {
	m.AddChecker(name, CheckerFunc(checkFunc))
}

// Check performs all health checks and returns the result. Any unhealthy
// dependency makes the service unhealthy; any degraded one makes it degraded.
func (m *Manager) Check(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()
	sort.Strings(names)

	dependencies := make(map[string]CheckResult, len(names))
	overallStatus := StatusHealthy

	for _, name := range names {
		start := time.Now()
		result := checkers[name].Check(ctx)
		result.Latency = time.Since(start)
		result.Timestamp = time.Now()

		dependencies[name] = result

		switch {
		case result.Status == StatusUnhealthy:
			overallStatus = StatusUnhealthy
		case result.Status == StatusDegraded && overallStatus != StatusUnhealthy:
			overallStatus = StatusDegraded
		}
	}

	return HealthResponse{
		Status:       overallStatus,
		Service:      m.serviceName,
		Version:      m.version,
		Uptime:       time.Since(m.startTime).Round(time.Second).String(),
		Dependencies: dependencies,
		Metadata: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
		Timestamp: time.Now(),
	}
}

// HTTPHandler returns a HTTP handler for health checks. Degraded reports
// still answer 200.
func (m *Manager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result := m.Check(r.Context())

		statusCode := http.StatusOK
		if result.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(result); err != nil {
			m.logger.Error("Failed to write health check response", zap.Error(err))
		}
	}
}

// StaticChecker reports healthy with the given metadata. It describes
// components that are loaded once at startup.
func StaticChecker(metadata func() map[string]interface{}) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:   StatusHealthy,
			Metadata: metadata(),
		}
	})
}

// GeneratorChecker reports on the text generation backend. A missing
// credential is only degraded when the chat mode depends on the generator.
func GeneratorChecker(mode string, configured bool, model string) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		metadata := map[string]interface{}{
			"mode":       mode,
			"configured": configured,
		}
		if configured {
			metadata["model"] = model
		}

		status := StatusHealthy
		errMsg := ""
		if !configured && mode != "rules" {
			status = StatusDegraded
			errMsg = "no API key configured, generated replies are unavailable"
		}

		return CheckResult{Status: status, Error: errMsg, Metadata: metadata}
	})
}

// DirectoryChecker verifies that dir exists, creating it when missing, and
// that a file can be written to it.
func DirectoryChecker(dir string) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		metadata := map[string]interface{}{"path": dir}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return CheckResult{
				Status:   StatusUnhealthy,
				Error:    fmt.Sprintf("failed to create directory: %v", err),
				Metadata: metadata,
			}
		}

		probe, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return CheckResult{
				Status:   StatusUnhealthy,
				Error:    fmt.Sprintf("directory is not writable: %v", err),
				Metadata: metadata,
			}
		}
		name := probe.Name()
		_ = probe.Close()
		_ = os.Remove(name)

		return CheckResult{Status: StatusHealthy, Metadata: metadata}
	})
}

// TemplatesChecker reports which template files are present in dir. Missing
// files are served from the built-in templates, so they only degrade.
func TemplatesChecker(dir string, fileNames []string) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		var missing []string
		for _, name := range fileNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
				missing = append(missing, name)
			}
		}

		metadata := map[string]interface{}{"path": dir}
		if len(missing) == 0 {
			return CheckResult{Status: StatusHealthy, Metadata: metadata}
		}

		metadata["builtin"] = missing
		return CheckResult{
			Status:   StatusDegraded,
			Error:    "some templates are missing, built-in templates are used instead",
			Metadata: metadata,
		}
	})
}
