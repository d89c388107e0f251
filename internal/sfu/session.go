package sfu

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"wchat-sfu/internal/ice"
	"wchat-sfu/internal/keepalive"
	"wchat-sfu/internal/metrics"
	"wchat-sfu/internal/recovery"
	"wchat-sfu/internal/types"
)

var errSessionClosed = errors.New("session closed")

// SessionConfig carries the per-session tunables.
type SessionConfig struct {
	Keepalive     keepalive.Config
	WriteDeadline time.Duration
}

// outFrame is one outgoing websocket frame. Every producer (offer
// generator, ICE callback, ping loop) enqueues here; a single writer
// goroutine owns the socket.
type outFrame struct {
	messageType int
	payload     []byte
}

// Session drives one connected peer: it owns the peer connection, the
// inbound signaling stream, the outbound queues and all per-peer goroutines.
type Session struct {
	peerID  uuid.UUID
	member  types.RoomMember
	manager *Manager
	ice     *ice.Provider
	log     logging.LeveledLogger

	conn *websocket.Conn
	pc   *webrtc.PeerConnection

	txWS   chan outFrame
	rxSub  chan types.SubscriberMessage
	rxPub  chan types.MessageToPublisher
	rxData chan types.DataChannelMessage

	done      chan struct{}
	closeOnce sync.Once
}

// RunSession serves one upgraded websocket until it closes. member must
// already be verified; no further authentication happens here.
func RunSession(
	conn *websocket.Conn,
	member types.RoomMember,
	manager *Manager,
	iceProvider *ice.Provider,
	cfg SessionConfig,
	logger logging.LeveledLogger,
) error {
	s := &Session{
		peerID:  uuid.New(),
		member:  member,
		manager: manager,
		ice:     iceProvider,
		log:     logger,
		conn:    conn,
		txWS:    make(chan outFrame, 256),
		rxSub:   make(chan types.SubscriberMessage, 64),
		rxPub:   make(chan types.MessageToPublisher, 16),
		rxData:  make(chan types.DataChannelMessage, 256),
		done:    make(chan struct{}),
	}

	return s.run(cfg)
}

func (s *Session) run(cfg SessionConfig) error {
	if cfg.WriteDeadline <= 0 {
		cfg.WriteDeadline = 5 * time.Second
	}

	s.log.Infof("Peer %s joins room %d (%s) as %q", s.peerID, s.member.RoomID, s.member.RoomName, s.member.MemberName)

	s.manager.AddPeer(s.peerID, s.member, s.rxPub, s.rxSub, s.rxData)
	metrics.RecordPeerConnected()
	defer s.close()

	go s.writeLoop(cfg.WriteDeadline)

	pc, err := s.newPeerConnection()
	if err != nil {
		return fmt.Errorf("failed to create a PeerConnection: %w", err)
	}
	s.pc = pc

	// One transceiver per media kind, video first, so the publisher can send
	// its camera and microphone on this single connection.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind); err != nil {
			return fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}

	if err := s.setupDataChannel(pc); err != nil {
		return err
	}

	localTracks := make(chan *webrtc.TrackLocalStaticRTP, 2)
	videoSSRC := make(chan webrtc.SSRC, 1)

	pc.OnTrack(s.onTrack(localTracks, videoSSRC))
	go s.trackBootstrap(localTracks)
	go s.publisherRTCPLoop(videoSSRC)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Infof("Peer connection state has changed to %s on %s", state, s.peerID)

		if state == webrtc.PeerConnectionStateDisconnected {
			s.manager.RemovePeer(s.peerID)
		}
	})

	pc.OnNegotiationNeeded(func() {
		s.log.Infof("Negotiation has been needed on %s - %s", s.peerID, pc.SignalingState())

		go func() {
			if err := s.doOffer(); err != nil {
				s.log.Errorf("%v on %s", err, s.peerID)
			}
		}()
	})

	pc.OnICECandidate(s.onICECandidate)

	go s.signalLoop()

	monitor := keepalive.NewMonitor(s.conn, s.log, cfg.Keepalive,
		func() error { return s.enqueueFrame(websocket.PingMessage, nil) },
		func() { recovery.SafeClose(s.log, s.conn.Close, "stale websocket") },
	)
	monitor.Start()
	defer monitor.Stop()

	s.readLoop()
	return nil
}

// readLoop pumps inbound websocket frames into the signaling queue. It runs
// on the caller's goroutine; returning tears the session down.
func (s *Session) readLoop() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Infof("Client disconnected normally on %s", s.peerID)
			} else {
				s.log.Errorf("Failed to read message on %s: %v", s.peerID, err)
			}
			return
		}

		var msg types.SubscriberMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Errorf("Failed to unmarshal json to message on %s: %v", s.peerID, err)
			continue
		}

		metrics.RecordSignalingMessage()

		select {
		case s.rxSub <- msg:
		case <-s.done:
			return
		}
	}
}

// writeLoop is the single owner of the websocket for writes.
func (s *Session) writeLoop(writeDeadline time.Duration) {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.txWS:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(frame.messageType, frame.payload); err != nil {
				s.log.Errorf("Failed to write websocket frame on %s: %v", s.peerID, err)
			}
		}
	}
}

func (s *Session) enqueueFrame(messageType int, payload []byte) error {
	select {
	case s.txWS <- outFrame{messageType: messageType, payload: payload}:
		return nil
	case <-s.done:
		return errSessionClosed
	}
}

// sendSignal marshals v and enqueues it as a text frame.
func (s *Session) sendSignal(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal signaling message: %w", err)
	}
	return s.enqueueFrame(websocket.TextMessage, payload)
}

// newPeerConnection builds the peer connection with default codecs and
// interceptors and the configured ICE servers. TURN credentials are derived
// for the SFU's own name.
func (s *Session) newPeerConnection() (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)

	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: s.ice.ServerConfig("sfu"),
	})
}

// setupDataChannel creates the chat channel and binds the relay loops.
func (s *Session) setupDataChannel(pc *webrtc.PeerConnection) error {
	dc, err := pc.CreateDataChannel(fmt.Sprintf("sfu-data-ch-%s", s.peerID), nil)
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}

	dc.OnOpen(func() {
		s.log.Infof("Data channel opens on %s", s.peerID)
		go s.relayData(dc)
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !utf8.Valid(msg.Data) {
			s.log.Errorf("Dropping non-UTF-8 data channel payload on %s", s.peerID)
			return
		}

		metrics.RecordDataMessage()
		s.manager.SendDataToSubscribers(s.peerID, string(msg.Data))
	})

	return nil
}

// relayData drains the data queue onto the channel, suppressing echo.
func (s *Session) relayData(dc *webrtc.DataChannel) {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.rxData:
			if msg.From == s.peerID {
				continue
			}

			payload, err := json.Marshal(msg)
			if err != nil {
				s.log.Errorf("%v on %s", err, s.peerID)
				continue
			}

			if err := dc.SendText(string(payload)); err != nil {
				s.log.Errorf("%v on %s", err, s.peerID)
			}
		}
	}
}

// onICECandidate trickles local candidates to the client.
func (s *Session) onICECandidate(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		s.log.Warnf("ICE candidate is not present on %s", s.peerID)
		return
	}

	payload, err := json.Marshal(types.NewClientIceCandidate(candidate.ToJSON()))
	if err != nil {
		s.log.Errorf("%v on %s", err, s.peerID)
		return
	}

	if err := s.sendSignal(types.SubscriberMessage{
		MsgType: types.MessageIceCandidate,
		Message: string(payload),
	}); err != nil {
		s.log.Errorf("%v on %s", err, s.peerID)
	}
}

// close tears down the session exactly once. Removal from the manager is
// idempotent with the Disconnected state handler.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.manager.RemovePeer(s.peerID)

		if s.pc != nil {
			recovery.SafeClose(s.log, s.pc.Close, "peer connection")
		}
		recovery.SafeClose(s.log, s.conn.Close, "websocket")

		metrics.RecordPeerDisconnected()
		s.log.Infof("Session closed on %s", s.peerID)
	})
}
