// Package network holds the client's connection to a relay host and local
// address helpers.
package network

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNoAddress is returned when no usable IPv4 address is found
var ErrNoAddress = errors.New("no local IPv4 address")

// GetLocalIP returns the primary local IP address, the one the OS would use
// for outbound traffic. No packet is sent.
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// offline hosts still have LAN addresses
		ips, ifErr := GetLocalIPs()
		if ifErr != nil || len(ips) == 0 {
			return "", fmt.Errorf("%w: %v", ErrNoAddress, err)
		}
		return ips[0], nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// GetLocalIPs returns all available local IPv4 addresses
func GetLocalIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		ips = append(ips, ipv4Addrs(addrs)...)
	}
	return ips, nil
}

func ipv4Addrs(addrs []net.Addr) []string {
	var ips []string
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		ip = ip.To4()
		if ip == nil {
			continue // not an ipv4 address
		}
		ips = append(ips, ip.String())
	}
	return ips
}

// HostAddr joins a host and port into a dialable address
func HostAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
