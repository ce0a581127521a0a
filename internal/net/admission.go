package net

import (
	"context"
	"encoding/binary"
	"net"

	"go.uber.org/zap"
)

// BanChecker is the subset of store.BanList the host-admission check
// needs; kept narrow so this package doesn't import internal/store.
type BanChecker interface {
	IsIPBanned(ctx context.Context, ip uint32) (bool, error)
}

// admission decides whether a freshly accepted socket may proceed,
// per spec.md §4.1: localhost and same-/24-as-primary-interface peers
// are always accepted; everyone else is subject to a ban-list lookup.
type admission struct {
	primaryNet24 uint32 // primary interface's IPv4 address, /24-masked
	hasPrimary   bool
	bans         BanChecker
	log          *zap.Logger
}

func newAdmission(bindAddr string, bans BanChecker, log *zap.Logger) *admission {
	a := &admission{bans: bans, log: log}
	if ip := primaryInterfaceIP(); ip != nil {
		a.primaryNet24 = ipv4ToUint32(ip) & 0xFFFFFF00
		a.hasPrimary = true
	}
	return a
}

func (a *admission) allow(ctx context.Context, remote net.Addr) bool {
	host, _, err := net.SplitHostPort(remote.String())
	if err != nil {
		host = remote.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	if v4 := ip.To4(); v4 != nil && a.hasPrimary {
		if ipv4ToUint32(v4)&0xFFFFFF00 == a.primaryNet24 {
			return true
		}
	}
	if a.bans == nil {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		banned, err := a.bans.IsIPBanned(ctx, ipv4ToUint32(v4))
		if err != nil {
			a.log.Warn("ban lookup failed, admitting by default", zap.Error(err))
			return true
		}
		return !banned
	}
	return true
}

func ipv4ToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

// primaryInterfaceIP returns the first non-loopback IPv4 address bound
// to this host, used as the admission check's reference /24.
func primaryInterfaceIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
