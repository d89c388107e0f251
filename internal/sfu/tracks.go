package sfu

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"wchat-sfu/internal/metrics"
	"wchat-sfu/internal/types"
)

// onTrack builds the handler for incoming remote tracks. For every remote
// track it allocates a forwardable local track, hands it to the bootstrap
// loop and then pumps RTP until the remote side goes away. Pion invokes the
// handler on its own goroutine per track, so blocking here is fine.
func (s *Session) onTrack(
	localTracks chan<- *webrtc.TrackLocalStaticRTP,
	videoSSRC chan<- webrtc.SSRC,
) func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {
	return func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.log.Infof("Got remote track: Kind=%s, SSRC=%d on %s", remote.Kind(), remote.SSRC(), s.peerID)

		if remote.Kind() == webrtc.RTPCodecTypeVideo {
			select {
			case videoSSRC <- remote.SSRC():
			default:
				// Only the first video SSRC drives the PLI forwarder.
			}
		}

		local, err := webrtc.NewTrackLocalStaticRTP(
			remote.Codec().RTPCodecCapability,
			fmt.Sprintf("%s%s-%s", TrackNamePrefix, remote.Kind(), uuid.NewString()),
			fmt.Sprintf("sfu-stream-%s", s.peerID),
		)
		if err != nil {
			s.log.Errorf("Failed to create TrackLocal on %s: %v", s.peerID, err)
			return
		}

		select {
		case localTracks <- local:
		case <-s.done:
			return
		}

		s.forwardRTP(remote, local)
	}
}

// forwardRTP copies RTP from the remote track into the forwardable track.
// A closed pipe only means a subscriber detached mid-write; any other write
// error ends the forwarder.
func (s *Session) forwardRTP(remote *webrtc.TrackRemote, local *webrtc.TrackLocalStaticRTP) {
	buf := make([]byte, 1500)
	pkt := &rtp.Packet{}

	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			return
		}

		if err = pkt.Unmarshal(buf[:n]); err != nil {
			s.log.Errorf("Failed to unmarshal incoming RTP packet on %s: %v", s.peerID, err)
			return
		}

		pkt.Extension = false
		pkt.Extensions = nil

		if err = local.WriteRTP(pkt); err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				s.log.Errorf("Output track write got error: %v on %s", err, s.peerID)
				continue
			}
			s.log.Errorf("Output track write got error: %v and break on %s", err, s.peerID)
			return
		}
	}
}

// trackBootstrap registers forwardable tracks as they appear and, once the
// publisher has produced both its audio and its video track, prompts the
// co-room peers to subscribe. Waiting for both avoids an intermediate
// renegotiation with only audio.
func (s *Session) trackBootstrap(localTracks <-chan *webrtc.TrackLocalStaticRTP) {
	for {
		select {
		case <-s.done:
			return
		case track := <-localTracks:
			s.manager.AddTrack(s.peerID, track)
			metrics.RecordTrackPublished()

			if s.manager.HasBothAudioAndVideo(s.peerID) {
				s.manager.SendToSubscribers(s.peerID, types.SubscriberMessage{MsgType: types.MessageStart})
				s.log.Infof("Both audio and video track are added to %s", s.peerID)
				return
			}
		}
	}
}

// publisherRTCPLoop waits for the publisher's video SSRC and then turns
// queued PLI requests from subscribers into RTCP writes on the publisher's
// connection. Only the first reported SSRC is honored.
func (s *Session) publisherRTCPLoop(videoSSRC <-chan webrtc.SSRC) {
	var ssrc webrtc.SSRC

	select {
	case <-s.done:
		return
	case ssrc = <-videoSSRC:
	}

	s.log.Infof("SSRC %d detected on %s", ssrc, s.peerID)

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.rxPub:
			if msg.RTCP != types.RTCPToPublisherPLI {
				continue
			}

			if err := s.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{
				SenderSSRC: 0,
				MediaSSRC:  uint32(ssrc),
			}}); err != nil {
				s.log.Errorf("%v on %s", err, s.peerID)
			}
		}
	}
}

// readSenderRTCP watches the RTCP stream of one subscribing sender and
// relays every PLI to the publisher that owns the track, so the publisher
// produces a fresh keyframe for the new subscriber.
func (s *Session) readSenderRTCP(sender *webrtc.RTPSender, publisherID uuid.UUID) {
	buf := make([]byte, 1500)

	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}

		packets, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}

		for _, packet := range packets {
			if pli, ok := packet.(*rtcp.PictureLossIndication); ok {
				s.log.Infof("PLI for SSRC %d on %s", pli.MediaSSRC, s.peerID)
				metrics.RecordPLIForwarded()
				s.manager.SendToPublisher(publisherID, types.MessageToPublisher{RTCP: types.RTCPToPublisherPLI})
			}
		}
	}
}
