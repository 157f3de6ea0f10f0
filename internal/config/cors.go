package config

import "strings"

// CORSConfig lets the checkout frontend call the buyer endpoints from the
// browser.  An empty AllowedOrigins disables CORS headers entirely.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         int
}

// LoadCORSConfig reads the browser origins allowed to call the API.  No
// origins means CORS is off.
func LoadCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: splitList(envStr("CORS_ALLOWED_ORIGINS", "")),
		AllowedMethods: splitList(envStr("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE")),
		AllowedHeaders: splitList(envStr("CORS_ALLOWED_HEADERS", "Authorization,Content-Type")),
		ExposedHeaders: splitList(envStr("CORS_EXPOSED_HEADERS", "Retry-After,X-RateLimit-Remaining,X-Cache")),
		MaxAge:         envInt("CORS_MAX_AGE", 600),
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
