// Package homekit delivers rewritten RTP packets to a HomeKit Secure Video
// receiver over SRTP/UDP.
package homekit

import (
	"fmt"
	"log"
	"net"

	"github.com/pion/srtp/v3"
)

// SRTPParams holds the AES_CM_128_HMAC_SHA1_80 master key material the
// receiver negotiated out of band. Leave both fields empty to send plain
// RTP, which is useful against test receivers.
type SRTPParams struct {
	Key  []byte
	Salt []byte
}

// Sender owns the UDP connection to the receiver. It implements
// domain.StreamSink.
type Sender struct {
	conn *net.UDPConn
	ctx  *srtp.Context // nil in plain-RTP mode
}

// NewSender dials the receiver and prepares the SRTP context when key
// material is present.
func NewSender(addr string, params SRTPParams) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve receiver address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial receiver: %w", err)
	}

	s := &Sender{conn: conn}
	if len(params.Key) > 0 {
		ctx, err := srtp.CreateContext(params.Key, params.Salt, srtp.ProtectionProfileAes128CmHmacSha1_80)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create srtp context: %w", err)
		}
		s.ctx = ctx
	}

	log.Printf("[homekit] sending to %s (srtp=%v)", addr, s.ctx != nil)
	return s, nil
}

// Write encrypts (when configured) and sends one serialized RTP packet.
func (s *Sender) Write(serialized []byte) error {
	out := serialized
	if s.ctx != nil {
		enc, err := s.ctx.EncryptRTP(nil, serialized, nil)
		if err != nil {
			return fmt.Errorf("encrypt rtp: %w", err)
		}
		out = enc
	}
	if _, err := s.conn.Write(out); err != nil {
		return fmt.Errorf("send rtp: %w", err)
	}
	return nil
}

// Close shuts down the UDP connection.
func (s *Sender) Close() error {
	return s.conn.Close()
}
