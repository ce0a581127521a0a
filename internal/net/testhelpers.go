package net

import (
	"net"

	"github.com/metaserver/metaserver/internal/wire"
	"go.uber.org/zap"
)

// NewTestConn builds a live Conn around an already-connected socket (for
// example one half of net.Pipe) without going through a Manager's accept
// loop, for other packages' tests that need a working Conn without a
// real listener.
func NewTestConn(nc net.Conn, id uint64, class wire.ConnClass, ingressLen, egressLen int, log *zap.Logger) *Conn {
	c := newConn(nc, id, class, ingressLen, egressLen, log)
	c.start()
	return c
}
