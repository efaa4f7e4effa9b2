package config

import (
	"os"
	"strings"
)

// SeedDefaults returns the values merged into the persisted configuration
// document at startup. Each key takes the process environment value when
// set, otherwise its built-in default.
func SeedDefaults() map[string]string {
	return map[string]string{
		"SECRET_KEY":                  envOr("SECRET_KEY", ""),
		"TELEGRAM_BOT_TOKEN":          envOr("TELEGRAM_BOT_TOKEN", ""),
		"ALGORITHM":                   envOr("ALGORITHM", "HS256"),
		"ACCESS_TOKEN_EXPIRE_MINUTES": envOr("ACCESS_TOKEN_EXPIRE_MINUTES", "30"),
	}
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// IsSecret reports whether a configuration key holds a credential that
// must not be shown in full.
func IsSecret(key string) bool {
	k := strings.ToUpper(key)
	return strings.Contains(k, "SECRET") ||
		strings.Contains(k, "PASSWORD") ||
		strings.HasSuffix(k, "_TOKEN") ||
		strings.HasSuffix(k, "_KEY")
}

// Mask hides all but the last four characters of v. Short values are
// hidden entirely.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
