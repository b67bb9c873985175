// Package osutils wraps the host platform's privilege and firewall controls.
package osutils

import (
	"fmt"
	"strconv"
	"strings"
)

// FirewallRuleName is the display name of the inbound rule for the relay port
const FirewallRuleName = "Rein Input Relay"

type rulePlan int

const (
	ruleKeep rulePlan = iota
	ruleCreate
	ruleReplace
)

func (p rulePlan) String() string {
	switch p {
	case ruleKeep:
		return "up to date"
	case ruleReplace:
		return "replacing"
	default:
		return "creating"
	}
}

// planFirewall decides what to do from the netsh lookup of the relay rule
func planFirewall(output string, lookupErr error, port int) rulePlan {
	if lookupErr != nil || !strings.Contains(output, FirewallRuleName) {
		return ruleCreate
	}
	if ruleMatches(output, port) {
		return ruleKeep
	}
	return ruleReplace
}

// firewallScript replaces any existing relay rule with one allowing TCP on port.
// No -Program restriction, so the rule survives the binary moving.
func firewallScript(port int) string {
	return fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol TCP -Action Allow -Profile Any",
		FirewallRuleName, FirewallRuleName, port,
	)
}

// ruleMatches reports whether netsh output describes an allow rule for port
func ruleMatches(output string, port int) bool {
	for _, want := range []string{FirewallRuleName, strconv.Itoa(port), "Allow"} {
		if !strings.Contains(output, want) {
			return false
		}
	}
	return true
}
