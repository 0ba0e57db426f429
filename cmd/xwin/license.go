package main

import (
	"github.com/wincrt/xwin"
	"github.com/wincrt/xwin/internal/env"
)

// requireLicense enforces spec.md §6's license gate before any verb that
// downloads Microsoft payloads runs: --accept-license or
// $XWIN_ACCEPT_LICENSE must be present, otherwise the run is a UserError
// (exit code 2).
func requireLicense(c *common) error {
	if env.LicenseAccepted(c.acceptLicense) {
		return nil
	}
	return &xwin.UserError{Reason: "the Microsoft Software License Terms were not accepted; pass --accept-license or set XWIN_ACCEPT_LICENSE=1"}
}
