//go:build !windows

package osutils

import (
	"log"
	"runtime"
)

// IsAdmin is a stub for non-Windows platforms
func IsAdmin() bool {
	return false
}

// EnsureFirewallRule is a stub for non-Windows platforms
func EnsureFirewallRule(port int) error {
	log.Printf("Firewall: Automatic rule management is not supported on %s, make sure TCP %d is reachable", runtime.GOOS, port)
	return nil
}
