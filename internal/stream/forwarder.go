// Package stream glues the camera's RTP feed to the HKSV sender through the
// repacketizer.
package stream

import (
	"fmt"
	"log"
	"sync"

	"hksv_home/bridge/internal/domain"
	"hksv_home/bridge/internal/rtp"

	"github.com/pion/logging"
	pion "github.com/pion/rtp"
)

// Forwarder runs every incoming RTP packet through a Repacketizer and writes
// the rewritten packets to a StreamSink. It implements domain.MediaSink.
//
// The repacketizer is created lazily on the first packet so that codec info
// from the SDP answer, which arrives before media, can be applied first.
type Forwarder struct {
	mu            sync.Mutex
	maxPacketSize int
	codec         rtp.CodecInfo
	repack        *rtp.Repacketizer

	sink          domain.StreamSink
	loggerFactory logging.LoggerFactory

	packetsIn  uint64
	packetsOut uint64
}

// NewForwarder creates a forwarder for one stream.
func NewForwarder(maxPacketSize int, sink domain.StreamSink, loggerFactory logging.LoggerFactory) *Forwarder {
	return &Forwarder{
		maxPacketSize: maxPacketSize,
		sink:          sink,
		loggerFactory: loggerFactory,
	}
}

// SetCodecInfo stores the out-of-band SPS/PPS for the session. Codec info
// arriving after media has started is ignored: the repacketizer's state is
// already in flight.
func (f *Forwarder) SetCodecInfo(info rtp.CodecInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.repack != nil {
		log.Printf("[stream] codec info arrived after media start, keeping existing parameters")
		return
	}
	f.codec = info
}

// WriteRTP rewrites one packet and forwards the result.
func (f *Forwarder) WriteRTP(pkt *pion.Packet) error {
	f.mu.Lock()
	if f.repack == nil {
		f.repack = rtp.NewRepacketizerWithLogger(f.maxPacketSize, f.codec,
			f.loggerFactory.NewLogger("repack"))
	}
	f.packetsIn++
	bufs := f.repack.Repacketize(pkt)
	f.packetsOut += uint64(len(bufs))
	f.mu.Unlock()

	for _, buf := range bufs {
		if err := f.sink.Write(buf); err != nil {
			return fmt.Errorf("write to stream sink: %w", err)
		}
	}
	return nil
}

// Stats reports packets consumed and emitted over the session.
func (f *Forwarder) Stats() (in, out uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.packetsIn, f.packetsOut
}
