// Package telemetry publishes compact status frames to an MQTT broker and
// feeds broker-sent command lines and time syncs into the event queue.
//
// The transport runs in its own goroutine so the session loop never waits
// on the network; everything crossing back into the loop goes through
// Loop.Post. Connect retries run on a fixed schedule.
package telemetry

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"

	"ember/emberos/kernel"
	"ember/emberos/proto"
	"ember/hal"
)

const (
	dialTimeout           = 10 * time.Second
	retryInterval         = 30 * time.Second
	defaultStatusInterval = 60 * time.Second

	// pollInterval paces the receive pump; each HandleNext waits at most
	// this long for broker traffic before handing control back.
	pollInterval = 100 * time.Millisecond
	connectPolls = 50

	bufSize = 512
)

// pubFlags: QoS0, not retained, not duplicate.
var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

// Config wires a Service to its collaborators.
type Config struct {
	Net  hal.Network
	Loop *kernel.Loop
	Log  *slog.Logger

	BrokerHost string
	BrokerPort uint16

	// ClientID names this device to the broker and roots its topics.
	ClientID string

	// StatusInterval paces status publishes; zero means the default.
	StatusInterval time.Duration

	// Snapshot builds the current status frame. Called in loop context.
	Snapshot func() proto.StatusFrame
}

// Service owns one MQTT client. Tick runs in loop context; the transport
// pump has its own goroutine.
type Service struct {
	net  hal.Network
	loop *kernel.Loop
	log  *slog.Logger

	host     string
	port     uint16
	clientID string

	interval time.Duration
	snapshot func() proto.StatusFrame
	next     time.Duration

	topicStatus []byte
	topicCmd    []byte
	topicTime   []byte

	frames chan proto.StatusFrame
	done   chan struct{}
	stop   sync.Once

	started bool

	pktID   uint16
	userBuf [bufSize]byte
	rxBuf   [bufSize]byte
	encBuf  [proto.StatusFrameLen]byte
}

// New returns a stopped service; Start launches the transport and Tick
// belongs in the task table.
func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.DiscardHandler)
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = defaultStatusInterval
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ember"
	}
	s := &Service{
		net:      cfg.Net,
		loop:     cfg.Loop,
		log:      cfg.Log,
		host:     cfg.BrokerHost,
		port:     cfg.BrokerPort,
		clientID: cfg.ClientID,
		interval: cfg.StatusInterval,
		snapshot: cfg.Snapshot,
		frames:   make(chan proto.StatusFrame, 1),
		done:     make(chan struct{}),
	}
	s.topicStatus, s.topicCmd, s.topicTime = topicsFor(cfg.ClientID)
	return s
}

// topicsFor roots the topic set under the client id. The time topic is
// expected to carry ASCII decimal Unix seconds, typically retained, so a
// fresh subscriber syncs immediately.
func topicsFor(clientID string) (status, cmd, timeSync []byte) {
	status = []byte("ember/" + clientID + "/status")
	cmd = []byte("ember/" + clientID + "/cmd")
	timeSync = []byte("ember/" + clientID + "/time")
	return status, cmd, timeSync
}

// Start launches the transport goroutine.
func (s *Service) Start() error {
	if s.net == nil {
		return errors.New("no network")
	}
	if s.host == "" {
		return errors.New("no broker configured")
	}
	if s.started {
		return errors.New("already started")
	}
	s.started = true
	go s.run()
	return nil
}

// Close stops the transport goroutine. Safe to call more than once.
func (s *Service) Close() {
	s.stop.Do(func() { close(s.done) })
}

// Tick runs in loop context: on the publish schedule it snapshots system
// state and hands the frame to the transport. A busy or disconnected
// transport drops the frame; the next one carries fresher data anyway.
func (s *Service) Tick() {
	up := s.loop.Uptime()
	if up < s.next {
		return
	}
	s.next = up + s.interval
	if s.snapshot == nil {
		return
	}
	select {
	case s.frames <- s.snapshot():
	default:
	}
}

func (s *Service) run() {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		conn, err := s.net.Dial(s.host, s.port, dialTimeout)
		if err != nil {
			s.log.Warn("mqtt:dial-failed", slog.String("err", err.Error()))
		} else {
			s.session(conn)
			_ = conn.Close()
		}
		select {
		case <-s.done:
			return
		case <-time.After(retryInterval):
		}
	}
}

// session drives one broker connection to completion: connect, subscribe,
// then pump publishes and inbound traffic until the link drops.
func (s *Service) session(conn io.ReadWriteCloser) {
	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: s.userBuf[:]},
		OnPub:   s.onMessage,
	})

	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(s.clientID))
	if err := client.StartConnect(conn, &varconn); err != nil {
		s.log.Warn("mqtt:connect-failed", slog.String("err", err.Error()))
		return
	}
	for i := 0; i < connectPolls && !client.IsConnected(); i++ {
		if !s.pause(pollInterval) {
			return
		}
		setReadDeadline(conn, time.Now().Add(pollInterval))
		_ = client.HandleNext()
	}
	if !client.IsConnected() {
		s.log.Warn("mqtt:connect-timeout", slog.String("broker", s.host))
		return
	}
	s.log.Info("mqtt:connected",
		slog.String("broker", s.host),
		slog.String("clientid", s.clientID),
	)

	varSub := mqtt.VariablesSubscribe{
		TopicFilters: []mqtt.SubscribeRequest{
			{TopicFilter: s.topicCmd, QoS: mqtt.QoS0},
			{TopicFilter: s.topicTime, QoS: mqtt.QoS0},
		},
		PacketIdentifier: s.nextID(),
	}
	if err := client.StartSubscribe(varSub); err != nil {
		s.log.Warn("mqtt:subscribe-failed", slog.String("err", err.Error()))
		client.Disconnect(err)
		return
	}

	for client.IsConnected() {
		select {
		case <-s.done:
			client.Disconnect(errors.New("shutdown"))
			return
		case f := <-s.frames:
			payload := proto.EncodeStatusFrame(s.encBuf[:0], f)
			pubVar := mqtt.VariablesPublish{
				TopicName:        s.topicStatus,
				PacketIdentifier: s.nextID(),
			}
			if err := client.PublishPayload(pubFlags, pubVar, payload); err != nil {
				s.log.Warn("mqtt:publish-failed", slog.String("err", err.Error()))
				client.Disconnect(err)
				return
			}
		default:
			// Idle reads time out quickly so queued frames get through.
			setReadDeadline(conn, time.Now().Add(pollInterval))
			_ = client.HandleNext()
		}
	}
	s.log.Info("mqtt:disconnected", slog.String("broker", s.host))
}

// onMessage routes inbound publishes. It runs on the transport goroutine,
// so events cross into the loop through Post.
func (s *Service) onMessage(_ mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
	n, err := r.Read(s.rxBuf[:])
	if err != nil && err != io.EOF {
		return err
	}
	payload := s.rxBuf[:n]
	switch {
	case bytes.Equal(varPub.TopicName, s.topicCmd):
		line := bytes.TrimSpace(payload)
		if len(line) == 0 {
			return nil
		}
		if !s.loop.Post(kernel.NewEvent(uint16(proto.EvCommand), line)) {
			s.log.Warn("mqtt:command-dropped")
		}
	case bytes.Equal(varPub.TopicName, s.topicTime):
		unix, perr := strconv.ParseInt(string(bytes.TrimSpace(payload)), 10, 64)
		if perr != nil || unix <= 0 {
			return nil
		}
		s.loop.Post(kernel.NewEvent(uint16(proto.EvTimeSync), proto.TimeSyncPayload(unix)))
	}
	return nil
}

func (s *Service) nextID() uint16 {
	s.pktID++
	if s.pktID == 0 {
		s.pktID = 1
	}
	return s.pktID
}

func (s *Service) pause(d time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(d):
		return true
	}
}

// setReadDeadline arms a transport deadline when the connection supports
// one. Without it an idle HandleNext blocks until the broker speaks.
func setReadDeadline(conn io.ReadWriteCloser, t time.Time) {
	switch c := conn.(type) {
	case interface{ SetReadDeadline(time.Time) error }:
		_ = c.SetReadDeadline(t)
	case interface{ SetDeadline(time.Time) error }:
		_ = c.SetDeadline(t)
	}
}
