package net

import (
	"net"
	"testing"
	"time"

	"github.com/metaserver/metaserver/internal/wire"
	"go.uber.org/zap"
)

func pipeConn(t *testing.T, class wire.ConnClass) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	c := newConn(server, 1, class, 4, 4, zap.NewNop())
	c.start()
	t.Cleanup(c.Close)
	return c, client
}

func TestConnReadLoopDeliversFrameToInQueue(t *testing.T) {
	c, client := pipeConn(t, wire.ConnPlayer)
	defer client.Close()

	go wire.WriteFrame(client, uint16(wire.OpLogin), []byte("payload"))

	select {
	case f := <-c.InQueue:
		if f.Type != uint16(wire.OpLogin) || string(f.Payload) != "payload" {
			t.Fatalf("got %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestConnSendDisconnectsOnFullEgressQueue(t *testing.T) {
	c, client := pipeConn(t, wire.ConnPlayer)
	defer client.Close()

	// Fill the egress queue without a reader draining the pipe so
	// writeLoop itself stalls mid-write, then the queue backs up.
	for i := 0; i < 4; i++ {
		c.Send(uint16(wire.OpKeepalive), nil)
	}
	time.Sleep(10 * time.Millisecond)
	c.Send(uint16(wire.OpKeepalive), nil)
	c.Send(uint16(wire.OpKeepalive), nil)

	select {
	case <-c.closeCh:
	case <-time.After(time.Second):
		t.Fatal("expected a full egress queue to disconnect the connection")
	}
}

func TestIdleForReflectsLastTouch(t *testing.T) {
	c, client := pipeConn(t, wire.ConnRoom)
	defer client.Close()

	c.lastMessageAt.Store(time.Now().Add(-time.Hour).UnixNano())
	if idle := c.IdleFor(time.Now()); idle < 59*time.Minute {
		t.Fatalf("expected idle time near an hour, got %v", idle)
	}
}
