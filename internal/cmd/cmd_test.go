package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAPIKeys(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single key default tenant", "abc123", map[string]string{"abc123": "default"}},
		{"key with tenant", "abc123:evaluator", map[string]string{"abc123": "evaluator"}},
		{
			"mixed with whitespace",
			" k1 , k2:gateway ,,",
			map[string]string{"k1": "default", "k2": "gateway"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAPIKeys(tt.env))
		})
	}
}

func TestTenantsFromKeys(t *testing.T) {
	tenants := tenantsFromKeys(map[string]string{
		"k1": "evaluator",
		"k2": "evaluator",
		"k3": "gateway",
	}, 25)

	require.Len(t, tenants, 2, "one tenant per distinct id")
	for _, tn := range tenants {
		assert.Equal(t, 25, tn.RateLimit)
	}
}

func TestResolvedVersion(t *testing.T) {
	assert.Equal(t, "dev", resolvedVersion())
}
