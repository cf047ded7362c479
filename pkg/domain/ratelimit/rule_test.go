package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{name: "valid", rule: Rule{Scope: ScopeDefault, Limit: 10, Window: time.Minute}, wantErr: false},
		{name: "valid with burst", rule: Rule{Scope: ScopeDefault, Limit: 10, Window: time.Minute, Burst: 5}, wantErr: false},
		{name: "zero limit", rule: Rule{Scope: ScopeDefault, Limit: 0, Window: time.Minute}, wantErr: true},
		{name: "negative limit", rule: Rule{Scope: ScopeDefault, Limit: -1, Window: time.Minute}, wantErr: true},
		{name: "zero window", rule: Rule{Scope: ScopeDefault, Limit: 10}, wantErr: true},
		{name: "negative burst", rule: Rule{Scope: ScopeDefault, Limit: 10, Window: time.Minute, Burst: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRule_Matches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{name: "exact match", pattern: "/api/login", path: "/api/login", want: true},
		{name: "exact mismatch", pattern: "/api/login", path: "/api/login/reset", want: false},
		{name: "wildcard prefix", pattern: "/api/videos*", path: "/api/videos/123", want: true},
		{name: "wildcard boundary", pattern: "/api/videos*", path: "/api/videos", want: true},
		{name: "wildcard mismatch", pattern: "/api/videos*", path: "/api/users", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := Rule{Scope: "endpoint:" + tt.pattern, Pattern: tt.pattern, Limit: 1, Window: time.Minute}
			assert.Equal(t, tt.want, rule.Matches(tt.path))
		})
	}
}

func TestNewRuleSet_Validation(t *testing.T) {
	def := Rule{Limit: 100, Window: time.Minute}

	t.Run("rejects endpoint rule without pattern", func(t *testing.T) {
		_, err := NewRuleSet(def, []Rule{{Limit: 5, Window: time.Minute}})
		assert.Error(t, err)
	})

	t.Run("rejects duplicate patterns", func(t *testing.T) {
		_, err := NewRuleSet(def, []Rule{
			{Pattern: "/api/login", Limit: 5, Window: time.Minute},
			{Pattern: "/api/login", Limit: 10, Window: time.Minute},
		})
		assert.Error(t, err)
	})

	t.Run("normalizes scopes", func(t *testing.T) {
		rs, err := NewRuleSet(def, []Rule{{Pattern: "/api/login", Limit: 5, Window: time.Minute}})
		require.NoError(t, err)
		assert.Equal(t, ScopeDefault, rs.Default().Scope)
		assert.Equal(t, "endpoint:/api/login", rs.Endpoints()[0].Scope)
	})
}

func TestRuleSet_Resolve(t *testing.T) {
	def := Rule{Limit: 100, Window: time.Minute}
	rs, err := NewRuleSet(def, []Rule{
		{Pattern: "/api/*", Limit: 50, Window: time.Minute},
		{Pattern: "/api/videos*", Limit: 30, Window: time.Minute},
		{Pattern: "/api/login", Limit: 5, Window: time.Minute},
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		path      string
		wantScope string
	}{
		{name: "no match falls back to default", path: "/health", wantScope: ScopeDefault},
		{name: "exact rule wins over wildcard", path: "/api/login", wantScope: "endpoint:/api/login"},
		{name: "most specific wildcard wins", path: "/api/videos/42", wantScope: "endpoint:/api/videos*"},
		{name: "general wildcard covers the rest", path: "/api/users", wantScope: "endpoint:/api/*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantScope, rs.Resolve(tt.path).Scope)
		})
	}
}

func TestRuleSet_Resolve_TieBreakDeclarationOrder(t *testing.T) {
	// Two patterns of equal specificity matching the same path: the first
	// declared rule wins. This is an explicit policy choice.
	def := Rule{Limit: 100, Window: time.Minute}
	rs, err := NewRuleSet(def, []Rule{
		{Pattern: "/api/a*", Limit: 1, Window: time.Minute},
		{Pattern: "/api/ab", Limit: 2, Window: time.Minute},
	})
	require.NoError(t, err)

	// "/api/ab" matches both; specificity of "/api/a*" is 6, of "/api/ab"
	// is 7, so the exact rule still wins.
	assert.Equal(t, "endpoint:/api/ab", rs.Resolve("/api/ab").Scope)

	rs2, err := NewRuleSet(def, []Rule{
		{Pattern: "/api/x*", Limit: 1, Window: time.Minute},
		{Pattern: "/api/y*", Limit: 2, Window: time.Minute},
	})
	require.NoError(t, err)
	// Only one matches here, but equal-specificity overlap keeps the
	// first declaration.
	assert.Equal(t, "endpoint:/api/x*", rs2.Resolve("/api/x1").Scope)

	rs3, err := NewRuleSet(def, []Rule{
		{Pattern: "/v1/ab*", Limit: 1, Window: time.Minute},
		{Pattern: "/v1/ab*", Limit: 2, Window: time.Minute},
	})
	assert.Error(t, err) // duplicates rejected outright
	assert.Nil(t, rs3)
}

func TestRule_Max(t *testing.T) {
	assert.Equal(t, 15, Rule{Limit: 10, Burst: 5}.Max())
	assert.Equal(t, 10, Rule{Limit: 10}.Max())
}

func TestRequest_Identity(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "principal takes precedence over ip",
			req:  Request{ClientIP: "1.2.3.4", PrincipalID: "user-7"},
			want: "principal:user-7",
		},
		{
			name: "anonymous falls back to ip",
			req:  Request{ClientIP: "1.2.3.4"},
			want: "ip:1.2.3.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Identity())
		})
	}
}

func TestWindowBucket(t *testing.T) {
	window := time.Minute
	base := time.Unix(1700000040, 0) // 40s into a minute bucket

	sameBucket := WindowBucket(base.Add(10*time.Second), window)
	assert.Equal(t, WindowBucket(base, window), sameBucket)

	nextBucket := WindowBucket(base.Add(window), window)
	assert.Equal(t, WindowBucket(base, window)+1, nextBucket)
}

func TestCounterKey(t *testing.T) {
	key := CounterKey("endpoint:/api/login", "ip:1.2.3.4", 42)
	assert.Equal(t, "endpoint:/api/login|ip:1.2.3.4|42", key)
}
