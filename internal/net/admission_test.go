package net

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"
)

type fakeBans struct {
	banned map[uint32]bool
}

func (f *fakeBans) IsIPBanned(ctx context.Context, ip uint32) (bool, error) {
	return f.banned[ip], nil
}

func TestAdmissionAlwaysAllowsLoopback(t *testing.T) {
	a := newAdmission(":0", &fakeBans{banned: map[uint32]bool{ipv4ToUint32(net.ParseIP("127.0.0.1")): true}}, zap.NewNop())
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1234}
	if !a.allow(context.Background(), addr) {
		t.Fatal("expected loopback to always be admitted")
	}
}

func TestAdmissionRejectsBannedRemote(t *testing.T) {
	bannedIP := net.ParseIP("203.0.113.9")
	a := &admission{bans: &fakeBans{banned: map[uint32]bool{ipv4ToUint32(bannedIP): true}}, log: zap.NewNop()}
	addr := &net.TCPAddr{IP: bannedIP, Port: 1234}
	if a.allow(context.Background(), addr) {
		t.Fatal("expected a banned remote to be rejected")
	}
}

func TestAdmissionAllowsUnbannedRemote(t *testing.T) {
	a := &admission{bans: &fakeBans{banned: map[uint32]bool{}}, log: zap.NewNop()}
	addr := &net.TCPAddr{IP: net.ParseIP("203.0.113.9"), Port: 1234}
	if !a.allow(context.Background(), addr) {
		t.Fatal("expected an unbanned remote to be admitted")
	}
}
