package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/applications", Method: "POST", Limit: 30, Window: time.Minute},
		{Path: "/applications/", Method: "POST", Limit: 300, Window: time.Minute},
		{Path: "/applications/x/", Method: "POST", Limit: 5, Window: time.Minute},
	}

	tests := []struct {
		name      string
		path      string
		method    string
		wantLimit int
		wantNil   bool
	}{
		{name: "exact", path: "/applications", method: "POST", wantLimit: 30},
		{name: "prefix", path: "/applications/abc/steps/2.1", method: "POST", wantLimit: 300},
		{name: "longest prefix", path: "/applications/x/submit", method: "POST", wantLimit: 5},
		{name: "method mismatch", path: "/applications", method: "GET", wantNil: true},
		{name: "no prefix match", path: "/other", method: "POST", wantNil: true},
		{name: "health unlimited", path: "/health", method: "GET", wantLimit: 0},
		{name: "registry unlimited", path: "/registry", method: "GET", wantLimit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}
