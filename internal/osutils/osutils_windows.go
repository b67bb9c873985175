//go:build windows

package osutils

import (
	"fmt"
	"log"
	"os/exec"

	"golang.org/x/sys/windows"
)

// IsAdmin reports whether the relay host runs elevated
func IsAdmin() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// EnsureFirewallRule makes sure an inbound allow rule exists for the relay
// port, requesting UAC elevation when the host is not elevated.
func EnsureFirewallRule(port int) error {
	out, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+FirewallRuleName).CombinedOutput()

	plan := planFirewall(string(out), err, port)
	log.Printf("Firewall: Rule '%s' for port %d: %s", FirewallRuleName, port, plan)
	if plan == ruleKeep {
		return nil
	}

	script := firewallScript(port)
	if IsAdmin() {
		if out, err := exec.Command("powershell", "-NoProfile", "-Command", script).CombinedOutput(); err != nil {
			return fmt.Errorf("apply firewall rule: %w (output: %s)", err, out)
		}
		return nil
	}
	return runElevated("powershell.exe", fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", script))
}

// runElevated starts exe through the UAC prompt without waiting for it
func runElevated(exe, args string) error {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	file, err := windows.UTF16PtrFromString(exe)
	if err != nil {
		return err
	}
	params, err := windows.UTF16PtrFromString(args)
	if err != nil {
		return err
	}

	if err := windows.ShellExecute(0, verb, file, params, nil, windows.SW_HIDE); err != nil {
		return fmt.Errorf("request elevation for %s: %w", exe, err)
	}
	log.Println("Firewall: UAC prompt requested")
	return nil
}
