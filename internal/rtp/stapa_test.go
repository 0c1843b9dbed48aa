package rtp

import (
	"bytes"
	"testing"
)

func TestDepacketizeSTAPA(t *testing.T) {
	nalu1 := []byte{0x67, 0xaa, 0xbb}
	nalu2 := []byte{0x68, 0xcc}

	payload := []byte{0x18}
	payload = append(payload, 0x00, 0x03)
	payload = append(payload, nalu1...)
	payload = append(payload, 0x00, 0x02)
	payload = append(payload, nalu2...)

	nalus := depacketizeSTAPA(payload)
	if len(nalus) != 2 {
		t.Fatalf("expected 2 nal units, got %d", len(nalus))
	}
	if !bytes.Equal(nalus[0], nalu1) || !bytes.Equal(nalus[1], nalu2) {
		t.Error("nal units do not match input")
	}
}

func TestDepacketizeSTAPA_StopsOnZeroSize(t *testing.T) {
	// A zero-sized entry terminates parsing safely.
	if nalus := depacketizeSTAPA([]byte{0x18, 0x00, 0x00}); len(nalus) != 0 {
		t.Fatalf("expected 0 nal units, got %d", len(nalus))
	}
}

func TestDepacketizeSTAPA_StopsOnTruncatedEntry(t *testing.T) {
	// Length prefix claims more bytes than remain.
	payload := []byte{0x18, 0x00, 0x10, 0x41, 0x42}
	if nalus := depacketizeSTAPA(payload); len(nalus) != 0 {
		t.Fatalf("expected 0 nal units, got %d", len(nalus))
	}
}

func TestPacketizeOneSTAPA_RoundTrip(t *testing.T) {
	r := NewRepacketizer(1200, CodecInfo{})

	want := [][]byte{
		makeNALU(0x67, 20),
		makeNALU(0x68, 8),
		makeNALU(0x41, 100),
	}
	datas := make([][]byte, len(want))
	copy(datas, want)

	agg := r.packetizeOneSTAPA(&datas)
	if len(datas) != 0 {
		t.Fatalf("expected queue drained, %d left", len(datas))
	}
	if agg[0]&naluTypeMask != naluTypeSTAPA {
		t.Fatalf("expected stap-a header, got 0x%02x", agg[0])
	}

	nalus := depacketizeSTAPA(agg)
	if len(nalus) != len(want) {
		t.Fatalf("expected %d nal units, got %d", len(want), len(nalus))
	}
	for i := range want {
		if !bytes.Equal(nalus[i], want[i]) {
			t.Errorf("nal unit %d changed in the round trip", i)
		}
	}
}

func TestPacketizeOneSTAPA_HeaderBits(t *testing.T) {
	r := NewRepacketizer(1200, CodecInfo{})

	// First NAL has NRI 1, second NRI 3 and the F bit: the aggregate header
	// must take the OR of F and the maximum NRI.
	datas := [][]byte{
		{0x21, 0x01},
		{0xe8, 0x02}, // F set, NRI 3
	}
	agg := r.packetizeOneSTAPA(&datas)

	if agg[0]&naluTypeMask != naluTypeSTAPA {
		t.Fatalf("expected stap-a type, got %d", agg[0]&naluTypeMask)
	}
	if agg[0]&naluForbiddenBit == 0 {
		t.Error("f bit must be the or across packed nal units")
	}
	if agg[0]&naluRefIdcMask != 0x60 {
		t.Errorf("nri must be the maximum, got 0x%02x", agg[0]&naluRefIdcMask)
	}
}

func TestPacketizeSTAPA_NineNALCap(t *testing.T) {
	r := NewRepacketizer(1200, CodecInfo{})

	datas := make([][]byte, 11)
	for i := range datas {
		datas[i] = makeNALU(0x41, 10)
	}

	aggs := r.packetizeSTAPA(datas)
	if len(aggs) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggs))
	}
	if got := len(depacketizeSTAPA(aggs[0])); got != 9 {
		t.Errorf("first aggregate should hold 9 nal units, got %d", got)
	}
	if got := len(depacketizeSTAPA(aggs[1])); got != 2 {
		t.Errorf("second aggregate should hold 2 nal units, got %d", got)
	}
}

func TestPacketizeSTAPA_SplitsOnSizeBudget(t *testing.T) {
	r := NewRepacketizer(300, CodecInfo{})

	datas := [][]byte{
		makeNALU(0x41, 140),
		makeNALU(0x41, 140),
		makeNALU(0x41, 140),
	}
	aggs := r.packetizeSTAPA(datas)
	if len(aggs) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggs))
	}
	for i, agg := range aggs {
		if len(agg) > 300 {
			t.Errorf("aggregate %d: %d bytes exceeds max packet size", i, len(agg))
		}
	}
}

func TestPacketizeOneSTAPA_OversizedNALFallsBackRaw(t *testing.T) {
	r := NewRepacketizer(100, CodecInfo{})

	big := makeNALU(0x41, 200)
	datas := [][]byte{big}
	out := r.packetizeOneSTAPA(&datas)

	if len(datas) != 0 {
		t.Fatal("oversized nal must still be consumed")
	}
	if !bytes.Equal(out, big) {
		t.Error("oversized nal must come back raw, without stap-a framing")
	}
}
