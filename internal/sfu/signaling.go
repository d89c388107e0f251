package sfu

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"

	"wchat-sfu/internal/metrics"
	"wchat-sfu/internal/types"
)

// signalLoop is the single consumer of the subscriber queue and the only
// goroutine that drives SDP negotiation for this peer. That makes the
// offer/answer exchange naturally linearized.
func (s *Session) signalLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.rxSub:
			s.dispatch(msg)
		}
	}
}

func (s *Session) dispatch(msg types.SubscriberMessage) {
	switch msg.MsgType {
	case types.MessagePrepare:
		s.log.Infof("Preparation is requested on %s", s.peerID)
		if err := s.doOffer(); err != nil {
			s.log.Errorf("%v on %s", err, s.peerID)
		}
	case types.MessageStart:
		if err := s.handleStart(); err != nil {
			s.log.Errorf("%v on %s", err, s.peerID)
		}
	case types.MessageAnswer:
		if err := s.handleAnswer(msg); err != nil {
			s.log.Errorf("%v on %s", err, s.peerID)
		}
	case types.MessageIceCandidate:
		if err := s.handleIceCandidate(msg); err != nil {
			s.log.Errorf("%v on %s", err, s.peerID)
		}
	case types.MessagePing:
		if err := s.handlePing(); err != nil {
			s.log.Errorf("%v on %s", err, s.peerID)
		}
	case types.MessagePong:
		// Nothing to do.
	case types.MessageOffer:
		s.log.Errorf("Receiving offers is currently not supported (%s)", s.peerID)
	default:
		s.log.Errorf("Unknown message %+v on %s", msg, s.peerID)
	}
}

// doOffer creates an offer, installs it locally and ships it to the client.
// Gathering is deliberately not awaited: candidates trickle afterwards.
func (s *Session) doOffer() error {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	local := s.pc.LocalDescription()
	if local == nil {
		return nil
	}

	sdp, err := json.Marshal(local)
	if err != nil {
		return fmt.Errorf("marshal local description: %w", err)
	}

	metrics.RecordOfferSent()
	return s.sendSignal(types.SubscriberMessage{
		MsgType: types.MessageOffer,
		Message: string(sdp),
	})
}

// handleAnswer installs the remote description the client produced for our
// offer.
func (s *Session) handleAnswer(msg types.SubscriberMessage) error {
	s.log.Infof("Receive answer on %s", s.peerID)

	var answer webrtc.SessionDescription
	if err := json.Unmarshal([]byte(msg.Message), &answer); err != nil {
		return fmt.Errorf("unmarshal answer: %w", err)
	}

	if err := s.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	return nil
}

// handleIceCandidate adds a client candidate. The literal string "null"
// marks end-of-candidates and is ignored.
func (s *Session) handleIceCandidate(msg types.SubscriberMessage) error {
	if msg.Message == "null" {
		return nil
	}

	s.log.Infof("An ICE candidate has been received on %s: %s", s.peerID, msg.Message)

	var candidate types.ClientIceCandidate
	if err := json.Unmarshal([]byte(msg.Message), &candidate); err != nil {
		return fmt.Errorf("unmarshal ice candidate: %w", err)
	}

	if err := s.pc.AddICECandidate(candidate.CandidateInit()); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}

	return nil
}

func (s *Session) handlePing() error {
	return s.sendSignal(types.PongReply{MsgType: types.MessagePong})
}

// handleStart reconciles the attached senders with the current co-room
// publisher tracks: stale SFU tracks are removed, missing ones attached,
// and a renegotiation offer is sent only when something actually changed.
func (s *Session) handleStart() error {
	s.log.Infof("Prepare tracks on %s", s.peerID)

	trackIDs, publisherTracks := s.manager.PublisherTracksInfo(s.peerID)

	attached := make(map[string]struct{})
	removed := 0

	for _, sender := range s.pc.GetSenders() {
		track := sender.Track()
		if track == nil {
			continue
		}

		trackID := track.ID()
		if !strings.HasPrefix(trackID, TrackNamePrefix) {
			continue
		}

		if _, ok := trackIDs[trackID]; !ok {
			s.log.Infof("Remove the track %s from %s", trackID, s.peerID)
			if err := s.pc.RemoveTrack(sender); err != nil {
				s.log.Errorf("Error while removing track %s: %v", trackID, err)
				continue
			}
			removed++
			continue
		}

		attached[trackID] = struct{}{}
	}

	s.log.Infof("The number of publisher tracks is %d, %d already attached on %s",
		len(publisherTracks), len(attached), s.peerID)

	if len(publisherTracks) == 0 {
		s.log.Infof("No publisher for %s", s.peerID)
		return nil
	}

	added := 0
	for _, pt := range publisherTracks {
		trackID := pt.Track.ID()
		if _, ok := attached[trackID]; ok {
			s.log.Infof("The specified track already exists %s on %s", trackID, s.peerID)
			continue
		}

		sender, err := s.pc.AddTrack(pt.Track)
		if err != nil {
			s.log.Errorf("%v on %s", err, s.peerID)
			continue
		}

		s.log.Infof("Add a track %s to %s", trackID, s.peerID)
		added++

		go s.readSenderRTCP(sender, pt.PublisherID)
	}

	if added == 0 && removed == 0 {
		return nil
	}

	return s.doOffer()
}
