package domain

import (
	pion "github.com/pion/rtp"

	"hksv_home/bridge/internal/rtp"
)

// TicketFetcher retrieves signaling credentials from the camera cloud API.
type TicketFetcher interface {
	FetchTicket(jwt, serialNumber string) (*Ticket, error)
}

// Signaler manages the WebSocket signaling connection.
type Signaler interface {
	Connect() error
	SendJoinLive()
	SendSDPOffer(sdp string)
	SendICECandidate(sdpMid string, sdpMLineIndex int, candidate string)
	Close()
}

// Handler receives signaling events.
type Handler interface {
	OnAuthSuccess()
	OnPeerIn()
	OnPeerOut()
	OnSDPAnswer(sdp SDPPayload)
	OnRemoteICECandidate(candidate ICECandidatePayload)
}

// MediaSink consumes the camera's media: RTP packets as they arrive, plus
// the out-of-band codec parameters once the SDP answer reveals them.
// SetCodecInfo fires before the first WriteRTP of a session.
type MediaSink interface {
	WriteRTP(pkt *pion.Packet) error
	SetCodecInfo(info rtp.CodecInfo)
}

// StreamSink receives serialized RTP packets bound for the HKSV receiver.
type StreamSink interface {
	Write(serialized []byte) error
	Close() error
}

// Peer manages the WebRTC peer connection to the camera.
type Peer interface {
	AddTransceivers() error
	SetOnTrack(sink MediaSink)
	SetOnICECandidate(send func(sdpMid string, sdpMLineIndex int, candidate string))
	CreateOffer() (string, error)
	SetRemoteDescription(sdp SDPPayload) error
	AddRemoteICECandidate(candidate ICECandidatePayload) error
	Close()
}
