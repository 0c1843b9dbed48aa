// Package rtp rewrites H.264 RTP streams into a form HomeKit Secure Video
// receivers accept. Packets are re-split so no payload exceeds the
// receiver's maximum size, SPS/PPS codec parameters are injected ahead of
// keyframes when the upstream stream omits them, and SEI units (which break
// the receiver) are stripped. Sequence numbers, timestamps, and marker bits
// stay self-consistent across the rewrite.
package rtp

import (
	"github.com/pion/logging"
	"github.com/pion/rtp"
)

// NAL unit types from RFC 6184. Types 1-23 are single NAL unit packets;
// STAP-A and FU-A are the aggregation and fragmentation wrappers.
const (
	naluTypeIDR   = 5
	naluTypeSEI   = 6
	naluTypeSPS   = 7
	naluTypePPS   = 8
	naluTypeSTAPA = 24
	naluTypeFUA   = 28
)

// NAL header byte layout: F(1) | NRI(2) | Type(5).
const (
	naluTypeMask     = 0x1f
	naluRefIdcMask   = 0x60
	naluForbiddenBit = 0x80
	fnriMask         = 0xe0
)

// FU-A payloads carry a 2-byte prefix: the FU indicator and the FU header
// with S|E|R bits plus the original NAL type.
const (
	fuaHeaderSize = 2
	fuaStartBit   = 0x80
	fuaEndBit     = 0x40
)

// STAP-A payloads carry a 1-byte header followed by length-prefixed NALs.
const (
	stapaHeaderSize     = 1
	stapaNALULengthSize = 2
	stapaMaxNALUs       = 9
)

// CodecInfo carries out-of-band SPS and PPS NAL units, typically decoded
// from an SDP sprop-parameter-sets attribute. Either field may be empty,
// which disables SPS/PPS injection.
type CodecInfo struct {
	SPS []byte
	PPS []byte
}

// Repacketizer rewrites one H.264 RTP stream. It is stateful and strictly
// single-stream: use one instance per stream, from one goroutine.
type Repacketizer struct {
	maxPacketSize int
	fuaMax        int
	codecInfo     CodecInfo

	// extraPackets is the running difference between packets emitted and
	// packets consumed, applied to the sequence number of every emission.
	// It is signed: dropping SEI or unknown NAL units drives it negative.
	extraPackets int
	seenSPS      bool
	pendingFUA   []*rtp.Packet
	pendingSTAPA []*rtp.Packet

	log logging.LeveledLogger
}

// NewRepacketizer creates a repacketizer for one stream. maxPacketSize
// bounds the payload of every emitted packet and must be at least 3;
// HomeKit receivers typically ask for 1100-1300.
func NewRepacketizer(maxPacketSize int, codecInfo CodecInfo) *Repacketizer {
	return NewRepacketizerWithLogger(maxPacketSize, codecInfo,
		logging.NewDefaultLoggerFactory().NewLogger("repack"))
}

// NewRepacketizerWithLogger is NewRepacketizer with a caller-supplied logger.
func NewRepacketizerWithLogger(maxPacketSize int, codecInfo CodecInfo, log logging.LeveledLogger) *Repacketizer {
	return &Repacketizer{
		maxPacketSize: maxPacketSize,
		fuaMax:        maxPacketSize - fuaHeaderSize,
		codecInfo:     codecInfo,
		log:           log,
	}
}

// Repacketize consumes one RTP packet and returns zero or more serialized
// RTP packets. It may return nothing while buffering fragments; buffered
// data goes out when the access unit completes or the timestamp moves on.
// The input packet is borrowed: it may be mutated during the call but is
// restored before returning.
func (r *Repacketizer) Repacketize(pkt *rtp.Packet) [][]byte {
	var out [][]byte

	// A timestamp change means a new access unit: anything buffered for the
	// previous one must go out first.
	if len(r.pendingFUA) > 0 && r.pendingFUA[0].Timestamp != pkt.Timestamp {
		r.flushPendingFUA(&out)
	}
	if len(r.pendingSTAPA) > 0 && r.pendingSTAPA[0].Timestamp != pkt.Timestamp {
		r.flushPendingSTAPA(&out)
	}

	if len(pkt.Payload) == 0 {
		r.log.Warnf("dropping rtp packet with empty payload")
		r.extraPackets--
		return out
	}

	naluType := pkt.Payload[0] & naluTypeMask
	switch {
	case naluType == naluTypeFUA:
		r.handleFUA(pkt, &out)
	case naluType == naluTypeSTAPA:
		r.handleSTAPA(pkt, &out)
	case naluType >= 1 && naluType <= 23:
		r.handleSingle(naluType, pkt, &out)
	default:
		r.log.Warnf("unknown nal unit type %d", naluType)
		r.extraPackets--
	}
	return out
}

func (r *Repacketizer) handleSingle(naluType byte, pkt *rtp.Packet, out *[][]byte) {
	r.flushPendingFUA(out)

	if naluType == naluTypeSPS || naluType == naluTypePPS {
		if naluType == naluTypeSPS {
			r.seenSPS = true
		}
		// Codec NALs wait in the STAP-A buffer so the SPS and PPS of one
		// access unit travel together in a single aggregate.
		r.pendingSTAPA = append(r.pendingSTAPA, clonePacket(pkt))
		return
	}

	r.flushPendingSTAPA(out)

	if naluType == naluTypeSEI {
		// SEI breaks the receiver. Drop it; extraPackets absorbs the gap.
		r.extraPackets--
		return
	}

	if naluType == naluTypeIDR && !r.seenSPS {
		r.maybeSendSPSPPS(pkt, out)
	}

	if len(pkt.Payload) > r.maxPacketSize {
		frags := r.packetizeFUA(pkt.Payload, false, false)
		r.createRTPPackets(pkt, frags, out, pkt.Marker)
		return
	}

	if buf := r.createPacket(pkt, pkt.Payload, pkt.Marker); buf != nil {
		*out = append(*out, buf)
	}
}
