package sfu

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"wchat-sfu/internal/types"
)

// TrackNamePrefix marks track ids owned by the SFU. The subscribe path only
// ever attaches and detaches tracks carrying this prefix.
const TrackNamePrefix = "sfu-track-"

// PublisherTrack pairs a forwardable track with the peer that publishes it.
type PublisherTrack struct {
	PublisherID uuid.UUID
	Track       *webrtc.TrackLocalStaticRTP
}

// Manager is the process-wide peer registry. It maps each peer to its room
// membership, its published tracks and its three outbound queues, and fans
// messages out to co-room peers.
//
// All state is guarded by a single mutex. Queue sends under the lock are
// non-blocking, so no WebRTC or network I/O ever happens while it is held.
type Manager struct {
	mu  sync.Mutex
	log logging.LeveledLogger

	members          map[uuid.UUID]types.RoomMember
	tracks           map[uuid.UUID][]*webrtc.TrackLocalStaticRTP
	toPublishers     map[uuid.UUID]chan<- types.MessageToPublisher
	toSubscribers    map[uuid.UUID]chan<- types.SubscriberMessage
	toSubscriberData map[uuid.UUID]chan<- types.DataChannelMessage
}

// NewManager creates an empty peer registry
func NewManager(logger logging.LeveledLogger) *Manager {
	return &Manager{
		log:              logger,
		members:          make(map[uuid.UUID]types.RoomMember),
		tracks:           make(map[uuid.UUID][]*webrtc.TrackLocalStaticRTP),
		toPublishers:     make(map[uuid.UUID]chan<- types.MessageToPublisher),
		toSubscribers:    make(map[uuid.UUID]chan<- types.SubscriberMessage),
		toSubscriberData: make(map[uuid.UUID]chan<- types.DataChannelMessage),
	}
}

// AddPeer registers a freshly connected peer with its room membership and
// outbound queues. Callers guarantee peerID freshness.
func (m *Manager) AddPeer(
	peerID uuid.UUID,
	member types.RoomMember,
	toPublisher chan<- types.MessageToPublisher,
	toSubscriber chan<- types.SubscriberMessage,
	toSubscriberData chan<- types.DataChannelMessage,
) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.members[peerID] = member
	m.toPublishers[peerID] = toPublisher
	m.toSubscribers[peerID] = toSubscriber
	m.toSubscriberData[peerID] = toSubscriberData
}

// AddTrack appends a forwardable track to the publisher's track list. The
// track must already have a running RTP forwarder writing into it.
func (m *Manager) AddTrack(peerID uuid.UUID, track *webrtc.TrackLocalStaticRTP) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tracks[peerID] = append(m.tracks[peerID], track)
}

// HasBothAudioAndVideo reports whether the peer has published its audio and
// video track.
func (m *Manager) HasBothAudioAndVideo(peerID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tracks[peerID]) == 2
}

// RemovePeer drops the peer from every map and broadcasts a Start message to
// the remaining peers of its room so they re-evaluate their subscriptions.
// Safe to call more than once; removal and broadcast happen under one lock.
func (m *Manager) RemovePeer(peerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[peerID]
	if !ok {
		return
	}

	delete(m.members, peerID)
	delete(m.tracks, peerID)
	delete(m.toPublishers, peerID)
	delete(m.toSubscribers, peerID)
	delete(m.toSubscriberData, peerID)

	m.sendToRoomLocked(member.RoomID, types.SubscriberMessage{MsgType: types.MessageStart})
}

// PublisherTracksInfo enumerates the tracks of every other peer in the same
// room. The returned set holds the track ids; the slice pairs each track
// with its publisher (publishers repeat, one entry per track). Both are
// copies and safe to use after the call.
func (m *Manager) PublisherTracksInfo(peerID uuid.UUID) (map[string]struct{}, []PublisherTrack) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trackIDs := make(map[string]struct{})
	var publisherTracks []PublisherTrack

	member, ok := m.members[peerID]
	if !ok {
		m.log.Warnf("Peer mapped to %s doesn't exist", peerID)
		return trackIDs, publisherTracks
	}

	for publisherID, tracks := range m.tracks {
		if publisherID == peerID {
			continue
		}

		publisher, ok := m.members[publisherID]
		if !ok {
			m.log.Warnf("Publisher mapped to %s doesn't exist", publisherID)
			continue
		}
		if publisher.RoomID != member.RoomID {
			continue
		}

		for _, track := range tracks {
			publisherTracks = append(publisherTracks, PublisherTrack{PublisherID: publisherID, Track: track})
			trackIDs[track.ID()] = struct{}{}
		}
	}

	return trackIDs, publisherTracks
}

// SendToSubscribers enqueues msg on the subscriber queue of every other peer
// in the sender's room.
func (m *Manager) SendToSubscribers(peerID uuid.UUID, msg types.SubscriberMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[peerID]
	if !ok {
		m.log.Warnf("Peer mapped to %s doesn't exist", peerID)
		return
	}

	m.sendToRoomFromLocked(peerID, member.RoomID, msg)
}

// SendDataToSubscribers relays a data-channel text message to every other
// peer in the sender's room.
func (m *Manager) SendDataToSubscribers(peerID uuid.UUID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[peerID]
	if !ok {
		m.log.Warnf("Peer mapped to %s doesn't exist", peerID)
		return
	}

	for subscriberID, ch := range m.toSubscriberData {
		if subscriberID == peerID {
			continue
		}

		subscriber, ok := m.members[subscriberID]
		if !ok {
			m.log.Warnf("Subscriber mapped to %s doesn't exist", subscriberID)
			continue
		}
		if subscriber.RoomID != member.RoomID {
			continue
		}

		select {
		case ch <- types.DataChannelMessage{From: peerID, Message: message}:
		default:
			m.log.Errorf("Error while sending a data message to %s", subscriberID)
		}
	}
}

// SendToPublisher enqueues feedback on the publisher's queue. Best effort.
func (m *Manager) SendToPublisher(peerID uuid.UUID, msg types.MessageToPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.toPublishers[peerID]
	if !ok {
		return
	}

	select {
	case ch <- msg:
	default:
		m.log.Errorf("Error while sending a message to %s", peerID)
	}
}

// NameByPeerID returns the member name behind a peer id.
func (m *Manager) NameByPeerID(peerID uuid.UUID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[peerID]
	if !ok {
		return "", false
	}
	return member.MemberName, true
}

// PeerCount returns the number of registered peers.
func (m *Manager) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.members)
}

// sendToRoomLocked fans msg out to every peer of the room. Callers hold the
// lock.
func (m *Manager) sendToRoomLocked(roomID int64, msg types.SubscriberMessage) {
	for subscriberID, ch := range m.toSubscribers {
		subscriber, ok := m.members[subscriberID]
		if !ok || subscriber.RoomID != roomID {
			continue
		}

		m.log.Infof("Require renegotiation to subscriber %s", subscriberID)

		select {
		case ch <- msg:
		default:
			m.log.Errorf("Error while sending a message to %s", subscriberID)
		}
	}
}

// sendToRoomFromLocked is sendToRoomLocked excluding the sender itself.
func (m *Manager) sendToRoomFromLocked(peerID uuid.UUID, roomID int64, msg types.SubscriberMessage) {
	for subscriberID, ch := range m.toSubscribers {
		if subscriberID == peerID {
			continue
		}

		subscriber, ok := m.members[subscriberID]
		if !ok {
			m.log.Warnf("Subscriber mapped to %s doesn't exist", subscriberID)
			continue
		}
		if subscriber.RoomID != roomID {
			continue
		}

		m.log.Infof("Require renegotiation to subscriber %s", subscriberID)

		select {
		case ch <- msg:
		default:
			m.log.Errorf("Error while sending a message to %s", subscriberID)
		}
	}
}
