// Package env resolves the handful of environment variables and defaults
// that configure a run, the way distri's own internal/env resolves
// $DISTRIROOT.
package env

import "os"

// CacheDir returns the cache root directory: $XWIN_CACHE_DIR if set,
// otherwise ./.xwin-cache (spec.md §6 --cache-dir default).
func CacheDir() string {
	if v := os.Getenv("XWIN_CACHE_DIR"); v != "" {
		return v
	}
	return "./.xwin-cache"
}

// LicenseAccepted reports whether the Microsoft EULA prompt may be
// skipped, either via $XWIN_ACCEPT_LICENSE or the --accept-license flag
// (passed in explicitly by the CLI layer).
func LicenseAccepted(flagAccepted bool) bool {
	if flagAccepted {
		return true
	}
	v := os.Getenv("XWIN_ACCEPT_LICENSE")
	return v != "" && v != "0"
}

// HTTPSProxy returns the proxy URL to use for CDN fetches: $HTTPS_PROXY,
// or "" if unset (spec.md §6 --https-proxy / Environment variables).
func HTTPSProxy() string {
	return os.Getenv("HTTPS_PROXY")
}

// caBundleVars is checked in order, the same precedence curl/requests use
// (spec.md §4.B).
var caBundleVars = []string{"SSL_CERT_FILE", "CURL_CA_BUNDLE", "REQUESTS_CA_BUNDLE"}

// CABundle returns the path to a custom CA bundle to trust in addition to
// the system roots, or "" if none of the recognized env vars are set.
func CABundle() string {
	for _, v := range caBundleVars {
		if p := os.Getenv(v); p != "" {
			return p
		}
	}
	return ""
}
