package metrics

import (
	"encoding/json"
	"testing"
)

func TestRecordPeerLifecycle(t *testing.T) {
	Reset()

	RecordPeerConnected()
	RecordPeerConnected()
	RecordPeerDisconnected()

	m := Get()
	if m.ActivePeers != 1 {
		t.Errorf("Expected 1 active peer, got %d", m.ActivePeers)
	}
	if m.TotalPeersConnected != 2 {
		t.Errorf("Expected 2 total connected, got %d", m.TotalPeersConnected)
	}
	if m.TotalPeersDisconnected != 1 {
		t.Errorf("Expected 1 total disconnected, got %d", m.TotalPeersDisconnected)
	}
}

func TestActivePeersNeverNegative(t *testing.T) {
	Reset()

	RecordPeerDisconnected()

	if m := Get(); m.ActivePeers != 0 {
		t.Errorf("Expected 0 active peers, got %d", m.ActivePeers)
	}
}

func TestRecordCounters(t *testing.T) {
	Reset()

	RecordSignalingMessage()
	RecordOfferSent()
	RecordTrackPublished()
	RecordDataMessage()
	RecordPLIForwarded()

	m := Get()
	if m.TotalSignalingMessages != 1 {
		t.Errorf("Expected 1 signaling message, got %d", m.TotalSignalingMessages)
	}
	if m.TotalOffersSent != 1 {
		t.Errorf("Expected 1 offer, got %d", m.TotalOffersSent)
	}
	if m.TotalTracksPublished != 1 {
		t.Errorf("Expected 1 track, got %d", m.TotalTracksPublished)
	}
	if m.TotalDataMessages != 1 {
		t.Errorf("Expected 1 data message, got %d", m.TotalDataMessages)
	}
	if m.TotalPLIForwarded != 1 {
		t.Errorf("Expected 1 PLI, got %d", m.TotalPLIForwarded)
	}
}

func TestReset(t *testing.T) {
	RecordPeerConnected()
	RecordOfferSent()

	Reset()

	m := Get()
	if m.ActivePeers != 0 || m.TotalPeersConnected != 0 || m.TotalOffersSent != 0 {
		t.Error("Expected all counters to be zero after reset")
	}
	if m.LastReset.Before(m.StartTime) {
		t.Error("Expected LastReset to be updated")
	}
}

func TestToJSON(t *testing.T) {
	Reset()
	RecordPeerConnected()

	var decoded map[string]any
	if err := json.Unmarshal(Get().ToJSON(), &decoded); err != nil {
		t.Fatalf("ToJSON produced invalid JSON: %v", err)
	}
	if decoded["active_peers"].(float64) != 1 {
		t.Errorf("Expected active_peers 1, got %v", decoded["active_peers"])
	}
}

func TestUptime(t *testing.T) {
	if Get().Uptime() < 0 {
		t.Error("Expected non-negative uptime")
	}
}
