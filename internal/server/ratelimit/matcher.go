package ratelimit

import (
	"strings"
)

// unlimitedPaths are GET endpoints that never consume tokens.
var unlimitedPaths = map[string]bool{
	"/health":   true,
	"/registry": true,
}

// MatchEndpoint returns the configuration for a request, or nil when the
// default limit applies. An exact path wins; otherwise the longest configured
// prefix ending in "/" wins, so "/applications/" covers
// "/applications/{id}/steps/{step_id}".
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && unlimitedPaths[path] {
		return &EndpointConfig{Path: path, Method: method}
	}

	var best *EndpointConfig
	for i := range configs {
		config := &configs[i]
		if config.Method != method {
			continue
		}
		if config.Path == path {
			return config
		}
		if strings.HasSuffix(config.Path, "/") && strings.HasPrefix(path, config.Path) {
			if best == nil || len(config.Path) > len(best.Path) {
				best = config
			}
		}
	}
	return best
}
