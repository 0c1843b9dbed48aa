package rtp

import "github.com/pion/rtp"

// depacketizeSTAPA splits a STAP-A payload into its NAL units. A zero
// length prefix or a length running past the payload ends parsing.
func depacketizeSTAPA(payload []byte) [][]byte {
	var nalus [][]byte
	offset := stapaHeaderSize
	for offset+stapaNALULengthSize <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += stapaNALULengthSize
		if size == 0 || offset+size > len(payload) {
			break
		}
		nalus = append(nalus, payload[offset:offset+size])
		offset += size
	}
	return nalus
}

// packetizeOneSTAPA builds a single STAP-A from the front of datas, packing
// NALs until the size budget or the 9-NAL cap runs out. If even the first
// NAL does not fit the budget it is popped and returned raw, without STAP-A
// framing; the receiver side treats that as best-effort degradation.
func (r *Repacketizer) packetizeOneSTAPA(datas *[][]byte) []byte {
	available := r.maxPacketSize - stapaHeaderSize - stapaNALULengthSize
	stapaHeader := byte(naluTypeSTAPA)
	var packed [][]byte

	for len(*datas) > 0 && len(packed) < stapaMaxNALUs {
		nalu := (*datas)[0]
		if stapaNALULengthSize+len(nalu) > available {
			break
		}
		available -= stapaNALULengthSize + len(nalu)
		*datas = (*datas)[1:]

		// F bit is the OR across packed NALs, NRI the maximum.
		stapaHeader |= nalu[0] & naluForbiddenBit
		if nalu[0]&naluRefIdcMask > stapaHeader&naluRefIdcMask {
			stapaHeader = stapaHeader&^byte(naluRefIdcMask) | nalu[0]&naluRefIdcMask
		}
		packed = append(packed, nalu)
	}

	if len(packed) == 0 {
		r.log.Warnf("stap a packet is too large")
		nalu := (*datas)[0]
		*datas = (*datas)[1:]
		return nalu
	}

	size := stapaHeaderSize
	for _, nalu := range packed {
		size += stapaNALULengthSize + len(nalu)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, stapaHeader)
	for _, nalu := range packed {
		buf = append(buf, byte(len(nalu)>>8), byte(len(nalu)))
		buf = append(buf, nalu...)
	}
	return buf
}

// packetizeSTAPA drains datas into as many STAP-A payloads as it takes.
func (r *Repacketizer) packetizeSTAPA(datas [][]byte) [][]byte {
	var aggs [][]byte
	for len(datas) > 0 {
		aggs = append(aggs, r.packetizeOneSTAPA(&datas))
	}
	return aggs
}

func (r *Repacketizer) handleSTAPA(pkt *rtp.Packet, out *[][]byte) {
	r.flushPendingFUA(out)

	var keep [][]byte
	for _, nalu := range depacketizeSTAPA(pkt.Payload) {
		switch nalu[0] & naluTypeMask {
		case naluTypeSEI:
			continue
		case naluTypeSPS:
			r.seenSPS = true
		}
		keep = append(keep, nalu)
	}

	aggs := r.packetizeSTAPA(keep)
	r.createRTPPackets(pkt, aggs, out, pkt.Marker)
}

// flushPendingSTAPA aggregates buffered codec NALs into one STAP-A. These
// are SPS/PPS sized, so anything other than exactly one aggregate means the
// buffer was misused; the group is dropped.
func (r *Repacketizer) flushPendingSTAPA(out *[][]byte) {
	if r.pendingSTAPA == nil {
		return
	}
	pending := r.pendingSTAPA
	r.pendingSTAPA = nil

	datas := make([][]byte, 0, len(pending))
	for _, p := range pending {
		datas = append(datas, p.Payload)
	}
	aggs := r.packetizeSTAPA(datas)
	if len(aggs) != 1 {
		r.log.Errorf("expected only 1 packet for sps/pps stapa")
		return
	}
	r.createRTPPackets(pending[0], aggs, out, pending[0].Marker)
	r.extraPackets -= len(pending) - 1
}

// maybeSendSPSPPS injects an SPS/PPS aggregate ahead of a keyframe when the
// stream itself has not carried codec parameters yet. Without out-of-band
// codec info it does nothing.
func (r *Repacketizer) maybeSendSPSPPS(template *rtp.Packet, out *[][]byte) {
	if len(r.codecInfo.SPS) == 0 || len(r.codecInfo.PPS) == 0 {
		return
	}
	r.log.Debugf("injecting sps/pps ahead of keyframe at ts %d", template.Timestamp)
	aggs := r.packetizeSTAPA([][]byte{r.codecInfo.SPS, r.codecInfo.PPS})
	if len(aggs) != 1 {
		r.log.Errorf("expected only 1 packet for sps/pps stapa")
		return
	}
	r.createRTPPackets(template, aggs, out, false)
	r.extraPackets++
}
