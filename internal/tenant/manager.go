// Package tenant provides per-tenant request validation for the HTTP
// surface: tenant existence and token-bucket rate limiting. A tenant here
// is one consumer of the honeypot API (an evaluator, a channel gateway),
// not a honeypot persona.
package tenant

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Tenant holds per-consumer configuration.
type Tenant struct {
	ID          string
	DisplayName string
	RateLimit   int // requests per second; 0 means no limit
}

// Manager validates incoming requests per tenant.
type Manager struct {
	tenants  map[string]*Tenant
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewManager creates a tenant manager from a static tenant list.
func NewManager(tenants []Tenant) *Manager {
	m := &Manager{
		tenants:  make(map[string]*Tenant),
		limiters: make(map[string]*rate.Limiter),
	}
	for i := range tenants {
		t := &tenants[i]
		m.tenants[t.ID] = t
		if t.RateLimit > 0 {
			m.limiters[t.ID] = rate.NewLimiter(rate.Limit(t.RateLimit), t.RateLimit*2) // burst = 2s worth
		}
	}
	return m
}

// ValidateRequest checks that the tenant exists and is within its rate
// limit. Returns a typed error on failure.
func (m *Manager) ValidateRequest(_ context.Context, tenantID string) error {
	m.mu.RLock()
	_, ok := m.tenants[tenantID]
	lim := m.limiters[tenantID]
	m.mu.RUnlock()
	if !ok {
		return ErrTenantNotFound
	}
	if lim != nil && !lim.Allow() {
		return ErrRateLimitExceeded
	}
	return nil
}
