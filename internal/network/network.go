// Package network reports whether the host has network connectivity.
// State comes from the pi-helper environment (written to /run/pi-helper.env)
// when present, and from the host's interfaces otherwise.
package network

import (
	"net"
	"os"
	"strings"
)

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// Info contains network state as reported by pi-helper.
type Info struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// ReadInfo returns pi-helper network info, or nil if NETWORK_STATUS is unset.
func ReadInfo() *Info {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &Info{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// Checker implements connectivity checks against the local host.
type Checker struct {
	readInfo   func() *Info
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

// NewChecker creates a Checker using the process environment and host interfaces.
func NewChecker() *Checker {
	return &Checker{
		readInfo:   ReadInfo,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

// Info returns the latest pi-helper info, or nil.
func (c *Checker) Info() *Info {
	return c.readInfo()
}

// IsConnected reports whether the host is connected. A pi-helper status of
// "connected" (or "up") wins; otherwise any non-loopback interface that is up
// and has a global unicast address counts.
func (c *Checker) IsConnected() bool {
	if info := c.readInfo(); info != nil {
		switch strings.ToLower(info.Status) {
		case "connected", "up":
			return true
		default:
			return false
		}
	}

	ifaces, err := c.interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := c.addrs(iface)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}

// Fake is a test double with a settable connection state.
type Fake struct {
	Connected bool
	Details   *Info
}

// Info returns f.Details.
func (f *Fake) Info() *Info {
	return f.Details
}

// IsConnected returns f.Connected.
func (f *Fake) IsConnected() bool {
	return f.Connected
}
