package signal

import (
	"testing"

	"hksv_home/bridge/internal/domain"
)

// mockHandler records dispatched events.
type mockHandler struct {
	authSuccess  bool
	peerIn       bool
	peerOut      bool
	sdpAnswer    *domain.SDPPayload
	iceCandidate *domain.ICECandidatePayload
}

func (m *mockHandler) OnAuthSuccess() { m.authSuccess = true }
func (m *mockHandler) OnPeerIn()      { m.peerIn = true }
func (m *mockHandler) OnPeerOut()     { m.peerOut = true }
func (m *mockHandler) OnSDPAnswer(sdp domain.SDPPayload) {
	m.sdpAnswer = &sdp
}
func (m *mockHandler) OnRemoteICECandidate(candidate domain.ICECandidatePayload) {
	m.iceCandidate = &candidate
}

func newTestClient(h domain.Handler) *Client {
	return NewClient(&domain.Ticket{ID: "viewer-1"}, "SN12345", h)
}

func intPtr(v int) *int { return &v }

func TestDispatch_AuthResponseSuccess(t *testing.T) {
	h := &mockHandler{}
	c := newTestClient(h)

	c.dispatch(message{Method: "AUTH_RESPONSE", Code: intPtr(0)})
	if !h.authSuccess {
		t.Error("expected OnAuthSuccess")
	}
}

func TestDispatch_AuthResponseFailure(t *testing.T) {
	h := &mockHandler{}
	c := newTestClient(h)

	c.dispatch(message{Method: "AUTH_RESPONSE", Code: intPtr(401), Message: "denied"})
	if h.authSuccess {
		t.Error("failed auth must not report success")
	}
}

func TestDispatch_PeerInOut(t *testing.T) {
	h := &mockHandler{}
	c := newTestClient(h)

	c.dispatch(message{Method: "PEER_IN", ClientID: "SN12345"})
	c.dispatch(message{Method: "PEER_OUT", ClientID: "SN12345"})
	if !h.peerIn || !h.peerOut {
		t.Error("expected OnPeerIn and OnPeerOut")
	}
}

func TestDispatch_SDPAnswer(t *testing.T) {
	h := &mockHandler{}
	c := newTestClient(h)

	encoded, err := encodePayload(domain.SDPPayload{Type: "answer", SDP: "v=0\r\nanswer"})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	c.dispatch(message{Method: "TRANSMIT", MessageType: "SDP_ANSWER", MessagePayload: encoded})

	if h.sdpAnswer == nil {
		t.Fatal("expected OnSDPAnswer")
	}
	if h.sdpAnswer.SDP != "v=0\r\nanswer" {
		t.Errorf("unexpected sdp: %q", h.sdpAnswer.SDP)
	}
}

func TestDispatch_ICECandidate(t *testing.T) {
	h := &mockHandler{}
	c := newTestClient(h)

	encoded, err := encodePayload(domain.ICECandidatePayload{
		SDPMid:        "0",
		SDPMLineIndex: 1,
		Candidate:     "candidate:123",
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	c.dispatch(message{Method: "TRANSMIT", MessageType: "ICE_CANDIDATE", MessagePayload: encoded})

	if h.iceCandidate == nil {
		t.Fatal("expected OnRemoteICECandidate")
	}
	if h.iceCandidate.Candidate != "candidate:123" || h.iceCandidate.SDPMLineIndex != 1 {
		t.Errorf("unexpected candidate: %+v", h.iceCandidate)
	}
}

func TestDispatch_MalformedTransmitPayloadIgnored(t *testing.T) {
	h := &mockHandler{}
	c := newTestClient(h)

	c.dispatch(message{Method: "TRANSMIT", MessageType: "SDP_ANSWER", MessagePayload: "%%%not-base64"})
	if h.sdpAnswer != nil {
		t.Error("malformed payload must not reach the handler")
	}
}

func TestEncodeDecodePayload_RoundTrip(t *testing.T) {
	in := domain.SDPPayload{Type: "offer", SDP: "v=0\r\noffer"}
	encoded, err := encodePayload(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var out domain.SDPPayload
	if err := decodePayload(encoded, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Errorf("round trip changed payload: %+v", out)
	}
}
