package metrics

import (
	"encoding/json"
	"sync"
	"time"
)

// Metrics holds process-wide SFU counters
type Metrics struct {
	mu                     sync.RWMutex
	ActivePeers            int       `json:"active_peers"`
	TotalPeersConnected    int       `json:"total_peers_connected"`
	TotalPeersDisconnected int       `json:"total_peers_disconnected"`
	TotalSignalingMessages int       `json:"total_signaling_messages"`
	TotalOffersSent        int       `json:"total_offers_sent"`
	TotalTracksPublished   int       `json:"total_tracks_published"`
	TotalDataMessages      int       `json:"total_data_messages"`
	TotalPLIForwarded      int       `json:"total_pli_forwarded"`
	StartTime              time.Time `json:"start_time"`
	LastReset              time.Time `json:"last_reset"`
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
	LastReset: time.Now(),
}

// Get returns a snapshot of current metrics
func Get() *Metrics {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	return &Metrics{
		ActivePeers:            globalMetrics.ActivePeers,
		TotalPeersConnected:    globalMetrics.TotalPeersConnected,
		TotalPeersDisconnected: globalMetrics.TotalPeersDisconnected,
		TotalSignalingMessages: globalMetrics.TotalSignalingMessages,
		TotalOffersSent:        globalMetrics.TotalOffersSent,
		TotalTracksPublished:   globalMetrics.TotalTracksPublished,
		TotalDataMessages:      globalMetrics.TotalDataMessages,
		TotalPLIForwarded:      globalMetrics.TotalPLIForwarded,
		StartTime:              globalMetrics.StartTime,
		LastReset:              globalMetrics.LastReset,
	}
}

// RecordPeerConnected increments peer counters
func RecordPeerConnected() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.ActivePeers++
	globalMetrics.TotalPeersConnected++
}

// RecordPeerDisconnected decrements the active peer counter
func RecordPeerDisconnected() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	if globalMetrics.ActivePeers > 0 {
		globalMetrics.ActivePeers--
	}
	globalMetrics.TotalPeersDisconnected++
}

// RecordSignalingMessage increments the inbound signaling counter
func RecordSignalingMessage() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.TotalSignalingMessages++
}

// RecordOfferSent increments the offer counter
func RecordOfferSent() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.TotalOffersSent++
}

// RecordTrackPublished increments the published-track counter
func RecordTrackPublished() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.TotalTracksPublished++
}

// RecordDataMessage increments the data-channel relay counter
func RecordDataMessage() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.TotalDataMessages++
}

// RecordPLIForwarded increments the keyframe-request counter
func RecordPLIForwarded() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.TotalPLIForwarded++
}

// Reset resets all metrics to zero
func Reset() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.ActivePeers = 0
	globalMetrics.TotalPeersConnected = 0
	globalMetrics.TotalPeersDisconnected = 0
	globalMetrics.TotalSignalingMessages = 0
	globalMetrics.TotalOffersSent = 0
	globalMetrics.TotalTracksPublished = 0
	globalMetrics.TotalDataMessages = 0
	globalMetrics.TotalPLIForwarded = 0
	globalMetrics.LastReset = time.Now()
}

// ToJSON returns metrics as JSON
func (m *Metrics) ToJSON() []byte {
	data, _ := json.MarshalIndent(m, "", "  ")
	return data
}

// Uptime returns how long the server has been running
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.StartTime)
}
