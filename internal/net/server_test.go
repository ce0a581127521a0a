package net

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/metaserver/metaserver/internal/wire"
	"go.uber.org/zap"
)

func TestManagerAcceptsAndReportsDeath(t *testing.T) {
	m, err := NewManager(Binds{Player: "127.0.0.1:0"}, nil, 16, 16, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	addr := m.listeners[wire.ConnPlayer].ln.Addr().String()
	client, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var conn *Conn
	select {
	case conn = <-m.NewConns():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
	if conn.Class != wire.ConnPlayer {
		t.Fatalf("class = %v, want player", conn.Class)
	}

	conn.Close()
	select {
	case dead := <-m.DeadConns():
		if dead.ID != conn.ID {
			t.Fatalf("dead conn id = %d, want %d", dead.ID, conn.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for death notification")
	}
}
