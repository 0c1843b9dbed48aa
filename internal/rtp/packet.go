package rtp

import "github.com/pion/rtp"

// clonePacket copies a borrowed packet for buffering. The header is copied
// by value; the payload bytes are duplicated since the caller may reuse its
// buffer.
func clonePacket(pkt *rtp.Packet) *rtp.Packet {
	clone := *pkt
	clone.Payload = append([]byte(nil), pkt.Payload...)
	return &clone
}

// createPacket serializes one outgoing packet, reusing template's header.
// The template is mutated for the marshal and restored afterwards: the
// sequence number shifts by the running extraPackets offset and the marker
// bit is forced to the given value.
func (r *Repacketizer) createPacket(template *rtp.Packet, payload []byte, marker bool) []byte {
	if len(payload) > r.maxPacketSize {
		r.log.Warnf("packet exceeded max packet size.")
	}

	origSeq := template.SequenceNumber
	origMarker := template.Marker
	origPayload := template.Payload

	template.SequenceNumber = origSeq + uint16(r.extraPackets)
	template.Marker = marker
	template.Payload = payload

	buf, err := template.Marshal()

	template.SequenceNumber = origSeq
	template.Marker = origMarker
	template.Payload = origPayload

	if err != nil {
		r.log.Errorf("marshal rtp packet: %v", err)
		return nil
	}
	return buf
}

// createRTPPackets emits one packet per chunk, bumping extraPackets for
// every chunk beyond the first. hadMarker is the marker bit of the original
// input; only the last chunk inherits it.
func (r *Repacketizer) createRTPPackets(template *rtp.Packet, chunks [][]byte, out *[][]byte, hadMarker bool) {
	for i, chunk := range chunks {
		if i != 0 {
			r.extraPackets++
		}
		if buf := r.createPacket(template, chunk, hadMarker && i == len(chunks)-1); buf != nil {
			*out = append(*out, buf)
		}
	}
}
