package rtp

import "github.com/pion/rtp"

// packetizeFUA splits one NAL unit into FU-A fragments whose payloads fit
// maxPacketSize. data starts with the NAL header byte; if it is itself an
// FU-A payload the original NAL header is reconstituted and the fragment's
// missing start/end bits carry through to noStart/noEnd.
func (r *Repacketizer) packetizeFUA(data []byte, noStart, noEnd bool) [][]byte {
	if data[0]&naluTypeMask == naluTypeFUA {
		noStart = noStart || data[1]&fuaStartBit == 0
		noEnd = noEnd || data[1]&fuaEndBit == 0
		header := data[0]&fnriMask | data[1]&naluTypeMask
		rest := data[fuaHeaderSize:]
		data = append(make([]byte, 0, 1+len(rest)), header)
		data = append(data, rest...)
	}

	fuaIndicator := data[0]&fnriMask | naluTypeFUA
	fuaType := data[0] & naluTypeMask
	payload := data[1:]
	if len(payload) == 0 {
		return nil
	}

	// Spread the remainder across the leading fragments so fragment sizes
	// differ by at most one byte.
	numPackets := (len(payload) + r.fuaMax - 1) / r.fuaMax
	chunkSize := len(payload) / numPackets
	numLarger := len(payload) % numPackets

	frags := make([][]byte, 0, numPackets)
	offset := 0
	for i := 0; i < numPackets; i++ {
		size := chunkSize
		if i < numLarger {
			size++
		}
		fuaHeader := fuaType
		if i == 0 && !noStart {
			fuaHeader |= fuaStartBit
		}
		if i == numPackets-1 && !noEnd {
			fuaHeader |= fuaEndBit
		}
		frag := make([]byte, fuaHeaderSize+size)
		frag[0] = fuaIndicator
		frag[1] = fuaHeader
		copy(frag[fuaHeaderSize:], payload[offset:offset+size])
		frags = append(frags, frag)
		offset += size
	}
	return frags
}

func (r *Repacketizer) handleFUA(pkt *rtp.Packet, out *[][]byte) {
	r.flushPendingSTAPA(out)

	if len(pkt.Payload) < fuaHeaderSize {
		r.log.Warnf("dropping truncated fu-a packet")
		r.extraPackets--
		return
	}

	fuaHeader := pkt.Payload[1]
	if fuaHeader&naluTypeMask == naluTypeIDR && fuaHeader&fuaStartBit != 0 && !r.seenSPS {
		r.maybeSendSPSPPS(pkt, out)
	}

	if r.pendingFUA == nil {
		// Fat fragments from RTSP-over-TCP sources can be several times the
		// target size. Those re-fragment directly, no reassembly needed.
		if len(pkt.Payload) >= 2*r.maxPacketSize {
			frags := r.packetizeFUA(pkt.Payload, false, false)
			r.createRTPPackets(pkt, frags, out, pkt.Marker)
			return
		}
	}

	r.pendingFUA = append(r.pendingFUA, clonePacket(pkt))
	if fuaHeader&fuaEndBit != 0 {
		r.flushPendingFUA(out)
	}
}

// flushPendingFUA reassembles the buffered fragments into the original NAL
// unit and re-fragments it to the target size. A NAL-type mismatch or a
// sequence gap discards the whole group; the stream recovers on the next
// packet.
func (r *Repacketizer) flushPendingFUA(out *[][]byte) {
	if r.pendingFUA == nil {
		return
	}
	pending := r.pendingFUA
	r.pendingFUA = nil

	first := pending[0]
	naluType := first.Payload[1] & naluTypeMask
	seq := first.SequenceNumber
	for _, p := range pending {
		if p.Payload[1]&naluTypeMask != naluType {
			r.log.Errorf("nal type mismatch")
			return
		}
		if p.SequenceNumber != seq {
			r.log.Errorf("fua packet is missing. skipping refragmentation.")
			return
		}
		seq++
	}

	last := pending[len(pending)-1]
	hasStart := first.Payload[1]&fuaStartBit != 0
	hasEnd := last.Payload[1]&fuaEndBit != 0

	size := 1
	for _, p := range pending {
		size += len(p.Payload) - fuaHeaderSize
	}
	defrag := make([]byte, 0, size)
	defrag = append(defrag, first.Payload[0]&fnriMask|naluType)
	for _, p := range pending {
		defrag = append(defrag, p.Payload[fuaHeaderSize:]...)
	}

	frags := r.packetizeFUA(defrag, !hasStart, !hasEnd)
	r.createRTPPackets(first, frags, out, last.Marker)
	r.extraPackets -= len(pending) - 1
}
