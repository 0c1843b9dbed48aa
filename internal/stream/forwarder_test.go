package stream

import (
	"errors"
	"testing"

	"hksv_home/bridge/internal/rtp"

	"github.com/pion/logging"
	pion "github.com/pion/rtp"
)

// mockSink records written buffers for verification.
type mockSink struct {
	written [][]byte
	err     error
	closed  bool
}

func (m *mockSink) Write(serialized []byte) error {
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, serialized)
	return nil
}

func (m *mockSink) Close() error {
	m.closed = true
	return nil
}

func makePacket(seq uint16, payload []byte) *pion.Packet {
	return &pion.Packet{
		Header: pion.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      3000,
			SSRC:           0xcafe,
		},
		Payload: payload,
	}
}

func TestForwarder_ForwardsRewrittenPackets(t *testing.T) {
	sink := &mockSink{}
	f := NewForwarder(1200, sink, logging.NewDefaultLoggerFactory())

	slice := make([]byte, 50)
	slice[0] = 0x41
	if err := f.WriteRTP(makePacket(10, slice)); err != nil {
		t.Fatalf("write rtp: %v", err)
	}

	if len(sink.written) != 1 {
		t.Fatalf("expected 1 forwarded packet, got %d", len(sink.written))
	}
	in, out := f.Stats()
	if in != 1 || out != 1 {
		t.Errorf("expected stats 1/1, got %d/%d", in, out)
	}
}

func TestForwarder_SEIProducesNothing(t *testing.T) {
	sink := &mockSink{}
	f := NewForwarder(1200, sink, logging.NewDefaultLoggerFactory())

	sei := make([]byte, 30)
	sei[0] = 0x06
	if err := f.WriteRTP(makePacket(10, sei)); err != nil {
		t.Fatalf("write rtp: %v", err)
	}

	if len(sink.written) != 0 {
		t.Fatalf("expected sei to be dropped, got %d packets", len(sink.written))
	}
	in, out := f.Stats()
	if in != 1 || out != 0 {
		t.Errorf("expected stats 1/0, got %d/%d", in, out)
	}
}

func TestForwarder_CodecInfoAppliedBeforeFirstPacket(t *testing.T) {
	sink := &mockSink{}
	f := NewForwarder(1200, sink, logging.NewDefaultLoggerFactory())

	sps := []byte{0x67, 0x01, 0x02}
	pps := []byte{0x68, 0x03}
	f.SetCodecInfo(rtp.CodecInfo{SPS: sps, PPS: pps})

	idr := make([]byte, 100)
	idr[0] = 0x65
	if err := f.WriteRTP(makePacket(10, idr)); err != nil {
		t.Fatalf("write rtp: %v", err)
	}

	// SPS/PPS STAP-A injected ahead of the keyframe, then the keyframe.
	if len(sink.written) != 2 {
		t.Fatalf("expected 2 forwarded packets, got %d", len(sink.written))
	}
	var first pion.Packet
	if err := first.Unmarshal(sink.written[0]); err != nil {
		t.Fatalf("unmarshal injected packet: %v", err)
	}
	if first.Payload[0]&0x1f != 24 {
		t.Errorf("expected a stap-a ahead of the keyframe, got nal type %d", first.Payload[0]&0x1f)
	}
}

func TestForwarder_LateCodecInfoIgnored(t *testing.T) {
	sink := &mockSink{}
	f := NewForwarder(1200, sink, logging.NewDefaultLoggerFactory())

	slice := make([]byte, 50)
	slice[0] = 0x41
	if err := f.WriteRTP(makePacket(10, slice)); err != nil {
		t.Fatalf("write rtp: %v", err)
	}

	f.SetCodecInfo(rtp.CodecInfo{SPS: []byte{0x67}, PPS: []byte{0x68}})

	idr := make([]byte, 100)
	idr[0] = 0x65
	if err := f.WriteRTP(makePacket(11, idr)); err != nil {
		t.Fatalf("write rtp: %v", err)
	}

	// No injection: the late codec info never reached the repacketizer.
	if len(sink.written) != 2 {
		t.Fatalf("expected 2 forwarded packets, got %d", len(sink.written))
	}
}

func TestForwarder_SinkErrorPropagates(t *testing.T) {
	sink := &mockSink{err: errors.New("receiver gone")}
	f := NewForwarder(1200, sink, logging.NewDefaultLoggerFactory())

	slice := make([]byte, 50)
	slice[0] = 0x41
	if err := f.WriteRTP(makePacket(10, slice)); err == nil {
		t.Error("expected sink error to propagate")
	}
}
