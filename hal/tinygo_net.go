//go:build tinygo

package hal

import (
	"errors"
	"io"
	"net/netip"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/cyw43439/examples/cywnet"
	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
)

const (
	devicePollTime = 5 * time.Millisecond
	deviceTCPBuf   = 2030 // MTU - ethhdr - iphdr - tcphdr
	dialRetries    = 3
)

var errBadAddr = errors.New("address must be an IP, no resolver on device")

// ConnectWiFi joins the network, starts the packet pump, and runs DHCP.
// It blocks until the link is up or fails; afterwards h.Network() is live.
func ConnectWiFi(h HAL, ssid, pass, hostname string) (netip.Addr, error) {
	dh, ok := h.(*deviceHAL)
	if !ok {
		return netip.Addr{}, errors.New("wifi needs the device hal")
	}

	devcfg := cyw43439.DefaultWifiConfig()
	cystack, err := cywnet.NewConfiguredPicoWithStack(ssid, pass, devcfg, cywnet.StackConfig{
		Hostname:    hostname,
		MaxTCPPorts: 3, // remote console + telemetry + probe
	})
	if err != nil {
		return netip.Addr{}, err
	}

	go pumpStack(cystack, dh)

	res, err := cystack.SetupWithDHCP(cywnet.DHCPConfig{})
	if err != nil {
		return netip.Addr{}, err
	}

	dh.net = &deviceNetwork{stack: cystack.LnetoStack()}
	return res.AssignedAddr, nil
}

// pumpStack moves packets between the radio and the TCP stack. It also
// feeds the watchdog every ~500ms: DHCP blocks the main goroutine before
// the loop (which normally does the feeding) is running.
func pumpStack(cystack *cywnet.Stack, h *deviceHAL) {
	var count int
	for {
		send, recv, _ := cystack.RecvAndSend()
		if send == 0 && recv == 0 {
			time.Sleep(devicePollTime)
		}
		count++
		if count >= 100 {
			h.Heartbeat()
			count = 0
		}
	}
}

type deviceNetwork struct {
	stack *xnet.StackAsync
}

func (n *deviceNetwork) Probe(host string, port uint16, timeout time.Duration) ProbeResult {
	conn, remote, err := n.dialTCP(host, port, timeout, 1)
	if err != nil {
		if errors.Is(err, errBadAddr) {
			return ProbeError
		}
		// The stack does not surface RST separately from silence here.
		return ProbeTimeout
	}
	closeDeviceConn(conn, n.stack, remote)
	return ProbeOpen
}

func (n *deviceNetwork) Dial(host string, port uint16, timeout time.Duration) (io.ReadWriteCloser, error) {
	conn, remote, err := n.dialTCP(host, port, timeout, dialRetries)
	if err != nil {
		return nil, err
	}
	return &deviceDialedConn{conn: conn, stack: n.stack, remote: remote}, nil
}

func (n *deviceNetwork) dialTCP(host string, port uint16, timeout time.Duration, retries int) (*tcp.Conn, netip.AddrPort, error) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil, netip.AddrPort{}, errBadAddr
	}
	remote := netip.AddrPortFrom(addr, port)

	conn := new(tcp.Conn)
	err = conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, deviceTCPBuf),
		TxBuf:             make([]byte, deviceTCPBuf),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return nil, remote, err
	}

	rstack := n.stack.StackRetrying(5 * time.Millisecond)
	lport := uint16(n.stack.Prand32()>>17) + 1024
	if err := rstack.DoDialTCP(conn, lport, remote, timeout, retries); err != nil {
		closeDeviceConn(conn, n.stack, remote)
		return nil, remote, err
	}
	return conn, remote, nil
}

// closeDeviceConn closes, waits out the FIN handshake, and aborts as a
// fallback, then drops the peer's ARP entry so the port slot frees for
// the next connection.
func closeDeviceConn(conn *tcp.Conn, s *xnet.StackAsync, remote netip.AddrPort) {
	_ = conn.Close()
	for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	conn.Abort()
	s.DiscardResolveHardwareAddress6(remote.Addr())
}

// deviceDialedConn is a dialed connection plus the cleanup that frees its
// stack slot on Close.
type deviceDialedConn struct {
	conn   *tcp.Conn
	stack  *xnet.StackAsync
	remote netip.AddrPort
}

func (c *deviceDialedConn) Read(p []byte) (int, error)  { return c.conn.Read(p) }
func (c *deviceDialedConn) Write(p []byte) (int, error) { return c.conn.Write(p) }

func (c *deviceDialedConn) SetReadDeadline(t time.Time) error {
	c.conn.SetDeadline(t)
	return nil
}

func (c *deviceDialedConn) Close() error {
	closeDeviceConn(c.conn, c.stack, c.remote)
	return nil
}

func (n *deviceNetwork) Listen(port uint16) (RemoteListener, error) {
	l := &deviceListener{stack: n.stack, port: port, conn: new(tcp.Conn)}
	err := l.conn.Configure(tcp.ConnConfig{
		RxBuf:             l.rxBuf[:],
		TxBuf:             l.txBuf[:],
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

const (
	lsIdle uint8 = iota
	lsSettling
	lsListening
	lsHanded
	lsDraining
)

// deviceListener serves one connection at a time from one pre-allocated
// conn slot. Poll never blocks: the abort settle and the FIN drain run
// as states stepped once per call.
type deviceListener struct {
	stack *xnet.StackAsync
	port  uint16
	conn  *tcp.Conn
	state uint8
	until time.Time

	rxBuf [deviceTCPBuf]byte
	txBuf [deviceTCPBuf]byte
}

func (l *deviceListener) Poll() (RemoteConn, bool) {
	switch l.state {
	case lsIdle:
		l.conn.Abort()
		l.until = time.Now().Add(100 * time.Millisecond)
		l.state = lsSettling
	case lsSettling:
		if time.Now().Before(l.until) {
			return nil, false
		}
		if err := l.stack.ListenTCP(l.conn, l.port); err != nil {
			l.state = lsIdle
			return nil, false
		}
		l.state = lsListening
	case lsListening:
		st := l.conn.State()
		if st.IsSynchronized() {
			l.state = lsHanded
			return &deviceRemoteConn{conn: l.conn, l: l}, true
		}
		if st.IsClosed() || st.IsClosing() {
			l.state = lsIdle
		}
	case lsHanded:
		// Slot comes back through release.
	case lsDraining:
		if l.conn.State().IsClosed() || !time.Now().Before(l.until) {
			l.state = lsIdle
		}
	}
	return nil, false
}

func (l *deviceListener) release() {
	l.until = time.Now().Add(3 * time.Second)
	l.state = lsDraining
}

func (l *deviceListener) Close() error {
	l.conn.Abort()
	l.state = lsHanded // parked; no further accepts
	return nil
}

type deviceRemoteConn struct {
	conn *tcp.Conn
	l    *deviceListener
}

func (c *deviceRemoteConn) ReadByte() (byte, bool) {
	var b [1]byte
	n, err := c.conn.Read(b[:])
	if err != nil || n == 0 {
		return 0, false
	}
	return b[0], true
}

func (c *deviceRemoteConn) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if err != nil {
		return n, err
	}
	c.conn.Flush()
	return n, nil
}

func (c *deviceRemoteConn) Closed() bool {
	st := c.conn.State()
	return st.IsClosed() || st.IsClosing() || !st.RxDataOpen()
}

func (c *deviceRemoteConn) Close() error {
	err := c.conn.Close()
	c.l.release()
	return err
}
