package sfu

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"wchat-sfu/internal/types"
)

type testPeer struct {
	id     uuid.UUID
	toPub  chan types.MessageToPublisher
	toSub  chan types.SubscriberMessage
	toData chan types.DataChannelMessage
}

func addTestPeer(m *Manager, roomID int64, name string) testPeer {
	p := testPeer{
		id:     uuid.New(),
		toPub:  make(chan types.MessageToPublisher, 4),
		toSub:  make(chan types.SubscriberMessage, 4),
		toData: make(chan types.DataChannelMessage, 4),
	}
	m.AddPeer(p.id, types.RoomMember{
		MemberID:   roomID*100 + int64(len(name)),
		RoomID:     roomID,
		RoomName:   "room",
		MemberName: name,
	}, p.toPub, p.toSub, p.toData)
	return p
}

func newVideoTrack(t *testing.T, id string) *webrtc.TrackLocalStaticRTP {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		id, "sfu-stream-test",
	)
	if err != nil {
		t.Fatalf("Failed to create track: %v", err)
	}
	return track
}

func newTestManager() *Manager {
	return NewManager(logging.NewDefaultLoggerFactory().NewLogger("sfu-test"))
}

func TestSendToSubscribersExcludesSender(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")
	bob := addTestPeer(m, 1, "bob")

	m.SendToSubscribers(alice.id, types.SubscriberMessage{MsgType: types.MessageStart})

	select {
	case msg := <-bob.toSub:
		if msg.MsgType != types.MessageStart {
			t.Errorf("Expected Start, got %s", msg.MsgType)
		}
	default:
		t.Error("Expected bob to receive the message")
	}

	select {
	case <-alice.toSub:
		t.Error("Sender must not receive its own message")
	default:
	}
}

func TestSendToSubscribersRoomIsolation(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")
	addTestPeer(m, 1, "bob")
	carol := addTestPeer(m, 2, "carol")

	m.SendToSubscribers(alice.id, types.SubscriberMessage{MsgType: types.MessageStart})

	select {
	case <-carol.toSub:
		t.Error("Peers of other rooms must not receive the message")
	default:
	}
}

func TestSendDataToSubscribers(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")
	bob := addTestPeer(m, 1, "bob")
	carol := addTestPeer(m, 2, "carol")

	m.SendDataToSubscribers(alice.id, "hello")

	select {
	case msg := <-bob.toData:
		if msg.From != alice.id {
			t.Errorf("Expected from %s, got %s", alice.id, msg.From)
		}
		if msg.Message != "hello" {
			t.Errorf("Expected message hello, got %s", msg.Message)
		}
	default:
		t.Error("Expected bob to receive the data message")
	}

	select {
	case <-alice.toData:
		t.Error("Sender must not receive its own data message")
	default:
	}
	select {
	case <-carol.toData:
		t.Error("Peers of other rooms must not receive the data message")
	default:
	}
}

func TestPublisherTracksInfo(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")
	bob := addTestPeer(m, 1, "bob")
	carol := addTestPeer(m, 2, "carol")

	bobTrack := newVideoTrack(t, "sfu-track-video-bob")
	m.AddTrack(bob.id, bobTrack)
	m.AddTrack(carol.id, newVideoTrack(t, "sfu-track-video-carol"))
	m.AddTrack(alice.id, newVideoTrack(t, "sfu-track-video-alice"))

	trackIDs, publisherTracks := m.PublisherTracksInfo(alice.id)

	if len(publisherTracks) != 1 {
		t.Fatalf("Expected 1 publisher track, got %d", len(publisherTracks))
	}
	if publisherTracks[0].PublisherID != bob.id {
		t.Errorf("Expected publisher %s, got %s", bob.id, publisherTracks[0].PublisherID)
	}
	if publisherTracks[0].Track != bobTrack {
		t.Error("Expected bob's track to be returned")
	}
	if _, ok := trackIDs["sfu-track-video-bob"]; !ok {
		t.Error("Expected track id set to contain bob's track")
	}
	if _, ok := trackIDs["sfu-track-video-alice"]; ok {
		t.Error("Track id set must not contain the caller's own tracks")
	}
}

func TestPublisherTracksInfoUnknownPeer(t *testing.T) {
	m := newTestManager()
	addTestPeer(m, 1, "alice")

	trackIDs, publisherTracks := m.PublisherTracksInfo(uuid.New())
	if len(trackIDs) != 0 || len(publisherTracks) != 0 {
		t.Error("Expected empty results for an unknown peer")
	}
}

func TestHasBothAudioAndVideo(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")

	if m.HasBothAudioAndVideo(alice.id) {
		t.Error("Expected false with no tracks")
	}

	m.AddTrack(alice.id, newVideoTrack(t, "sfu-track-video-a"))
	if m.HasBothAudioAndVideo(alice.id) {
		t.Error("Expected false with one track")
	}

	m.AddTrack(alice.id, newVideoTrack(t, "sfu-track-audio-a"))
	if !m.HasBothAudioAndVideo(alice.id) {
		t.Error("Expected true with two tracks")
	}
}

func TestRemovePeerBroadcastsToRoom(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")
	bob := addTestPeer(m, 1, "bob")
	carol := addTestPeer(m, 2, "carol")

	m.RemovePeer(alice.id)

	if _, ok := m.NameByPeerID(alice.id); ok {
		t.Error("Expected alice to be removed")
	}
	if m.PeerCount() != 2 {
		t.Errorf("Expected 2 remaining peers, got %d", m.PeerCount())
	}

	select {
	case msg := <-bob.toSub:
		if msg.MsgType != types.MessageStart {
			t.Errorf("Expected Start, got %s", msg.MsgType)
		}
	default:
		t.Error("Expected bob to be told to renegotiate")
	}

	select {
	case <-carol.toSub:
		t.Error("Peers of other rooms must not be told to renegotiate")
	default:
	}
}

func TestRemovePeerIdempotent(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")
	bob := addTestPeer(m, 1, "bob")

	m.RemovePeer(alice.id)
	<-bob.toSub
	m.RemovePeer(alice.id)

	select {
	case <-bob.toSub:
		t.Error("Second removal must not broadcast again")
	default:
	}
}

func TestSendToPublisher(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")

	m.SendToPublisher(alice.id, types.MessageToPublisher{RTCP: types.RTCPToPublisherPLI})

	select {
	case msg := <-alice.toPub:
		if msg.RTCP != types.RTCPToPublisherPLI {
			t.Errorf("Expected PLI, got %v", msg.RTCP)
		}
	default:
		t.Error("Expected alice to receive the feedback message")
	}

	// Unknown peers are a no-op.
	m.SendToPublisher(uuid.New(), types.MessageToPublisher{RTCP: types.RTCPToPublisherPLI})
}

func TestNameByPeerID(t *testing.T) {
	m := newTestManager()
	alice := addTestPeer(m, 1, "alice")

	name, ok := m.NameByPeerID(alice.id)
	if !ok || name != "alice" {
		t.Errorf("Expected (alice, true), got (%s, %v)", name, ok)
	}

	if _, ok := m.NameByPeerID(uuid.New()); ok {
		t.Error("Expected false for an unknown peer")
	}
}
