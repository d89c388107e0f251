package types

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// RoomMember is the verified identity of a connected peer. It is resolved
// once from the member token before any WebRTC object is created and is
// immutable for the life of the session.
type RoomMember struct {
	MemberID   int64  `json:"member_id"`
	RoomID     int64  `json:"room_id"`
	RoomName   string `json:"room_name"`
	MemberName string `json:"member_name"`
}

// SubscriberMessageType enumerates the msg_type values of the signaling
// protocol.
type SubscriberMessageType string

const (
	MessagePrepare      SubscriberMessageType = "Prepare"
	MessageStart        SubscriberMessageType = "Start"
	MessageOffer        SubscriberMessageType = "Offer"
	MessageAnswer       SubscriberMessageType = "Answer"
	MessageIceCandidate SubscriberMessageType = "IceCandidate"
	MessagePing         SubscriberMessageType = "Ping"
	MessagePong         SubscriberMessageType = "Pong"
)

// SubscriberMessage is one frame of the signaling protocol. Message carries a
// nested JSON document for Offer, Answer and IceCandidate, and is empty
// otherwise.
type SubscriberMessage struct {
	MsgType SubscriberMessageType `json:"msg_type"`
	Message string                `json:"message"`
}

// PongReply is the reply to a Ping. The message field is deliberately
// omitted; clients must tolerate its absence.
type PongReply struct {
	MsgType SubscriberMessageType `json:"msg_type"`
}

// DataChannelMessage is a relayed data-channel text message as delivered to
// subscribers.
type DataChannelMessage struct {
	From    uuid.UUID `json:"from"`
	Message string    `json:"message"`
}

// RTCPToPublisher identifies the kind of RTCP feedback relayed to a
// publisher.
type RTCPToPublisher int

const (
	// RTCPToPublisherPLI asks the publisher for a fresh keyframe.
	RTCPToPublisherPLI RTCPToPublisher = iota
)

// MessageToPublisher is delivered on a publisher's feedback queue.
type MessageToPublisher struct {
	RTCP RTCPToPublisher
}

// ClientIceCandidate is the on-wire shape of an ICE candidate.
//
// The spdMid field name is misspelled on purpose: deployed clients expect the
// misspelling, so it is load-bearing for compatibility.
type ClientIceCandidate struct {
	Candidate        *string `json:"candidate"`
	SDPMid           *string `json:"spdMid"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment"`
}

// NewClientIceCandidate converts a local candidate into its wire shape.
func NewClientIceCandidate(init webrtc.ICECandidateInit) ClientIceCandidate {
	return ClientIceCandidate{
		Candidate:        &init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

// CandidateInit converts a received candidate into the form AddICECandidate
// expects. Absent fields default to the empty string and m-line index 0.
func (c ClientIceCandidate) CandidateInit() webrtc.ICECandidateInit {
	var (
		candidate string
		mid       string
		line      uint16
		frag      string
	)
	if c.Candidate != nil {
		candidate = *c.Candidate
	}
	if c.SDPMid != nil {
		mid = *c.SDPMid
	}
	if c.SDPMLineIndex != nil {
		line = *c.SDPMLineIndex
	}
	if c.UsernameFragment != nil {
		frag = *c.UsernameFragment
	}
	return webrtc.ICECandidateInit{
		Candidate:        candidate,
		SDPMid:           &mid,
		SDPMLineIndex:    &line,
		UsernameFragment: &frag,
	}
}
