//go:build !tinygo

package hal

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	hostAcceptBacklog = 4
	hostConnBacklog   = 512
)

type hostNetwork struct{}

func newHostNetwork() Network { return hostNetwork{} }

func (hostNetwork) Probe(host string, port uint16, timeout time.Duration) ProbeResult {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err == nil {
		_ = conn.Close()
		return ProbeOpen
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ProbeTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ProbeClosed
	}
	return ProbeError
}

func (hostNetwork) Dial(host string, port uint16, timeout time.Duration) (io.ReadWriteCloser, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	return net.DialTimeout("tcp", addr, timeout)
}

func (hostNetwork) Listen(port uint16) (RemoteListener, error) {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(int(port)))
	if err != nil {
		return nil, err
	}
	l := &hostListener{ln: ln, accept: make(chan RemoteConn, hostAcceptBacklog)}
	go l.run()
	return l, nil
}

// hostListener accepts in a goroutine and buffers connections for the
// loop's Poll. With the backlog full, new peers are dropped at once rather
// than left hanging.
type hostListener struct {
	ln     net.Listener
	accept chan RemoteConn
}

func (l *hostListener) run() {
	for {
		c, err := l.ln.Accept()
		if err != nil {
			return
		}
		select {
		case l.accept <- newHostRemoteConn(c):
		default:
			_ = c.Close()
		}
	}
}

func (l *hostListener) Poll() (RemoteConn, bool) {
	select {
	case c := <-l.accept:
		return c, true
	default:
		return nil, false
	}
}

func (l *hostListener) Close() error { return l.ln.Close() }

// hostRemoteConn pumps the socket into a byte channel so loop-side reads
// never block.
type hostRemoteConn struct {
	c      net.Conn
	in     chan byte
	closed atomic.Bool
}

func newHostRemoteConn(c net.Conn) *hostRemoteConn {
	rc := &hostRemoteConn{c: c, in: make(chan byte, hostConnBacklog)}
	go rc.pump()
	return rc
}

func (c *hostRemoteConn) pump() {
	var buf [128]byte
	for {
		n, err := c.c.Read(buf[:])
		for _, b := range buf[:n] {
			select {
			case c.in <- b:
			default:
				// Peer outpaces the loop; excess input is dropped.
			}
		}
		if err != nil {
			c.closed.Store(true)
			return
		}
	}
}

func (c *hostRemoteConn) ReadByte() (byte, bool) {
	select {
	case b := <-c.in:
		return b, true
	default:
		return 0, false
	}
}

func (c *hostRemoteConn) Write(p []byte) (int, error) { return c.c.Write(p) }

func (c *hostRemoteConn) Closed() bool { return c.closed.Load() }

func (c *hostRemoteConn) Close() error {
	c.closed.Store(true)
	return c.c.Close()
}
