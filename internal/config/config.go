package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// HomeKit Secure Video receivers commonly request a 1226-byte RTP payload.
const defaultMaxPacketSize = 1226

// AES_CM_128_HMAC_SHA1_80 master key material sizes.
const (
	srtpKeySize  = 16
	srtpSaltSize = 14
)

// Config holds the bridge configuration.
type Config struct {
	Token         string
	SerialNumber  string
	ReceiverAddr  string
	SRTPKey       []byte
	SRTPSalt      []byte
	MaxPacketSize int
	Verbose       bool
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := &Config{
		Token:         os.Getenv("CAMERA_TOKEN"),
		SerialNumber:  os.Getenv("CAMERA_SN"),
		ReceiverAddr:  os.Getenv("HKSV_ADDR"),
		MaxPacketSize: defaultMaxPacketSize,
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("CAMERA_TOKEN environment variable is required")
	}
	if cfg.SerialNumber == "" {
		return nil, fmt.Errorf("CAMERA_SN environment variable is required")
	}
	if cfg.ReceiverAddr == "" {
		return nil, fmt.Errorf("HKSV_ADDR environment variable is required")
	}

	if raw := os.Getenv("HKSV_SRTP_KEY"); raw != "" {
		material, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode HKSV_SRTP_KEY: %w", err)
		}
		if len(material) != srtpKeySize+srtpSaltSize {
			return nil, fmt.Errorf("HKSV_SRTP_KEY must decode to %d bytes, got %d",
				srtpKeySize+srtpSaltSize, len(material))
		}
		cfg.SRTPKey = material[:srtpKeySize]
		cfg.SRTPSalt = material[srtpKeySize:]
	}

	if raw := os.Getenv("MAX_PACKET_SIZE"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse MAX_PACKET_SIZE: %w", err)
		}
		// The repacketizer needs room for at least STAP-A framing.
		if size < 3 {
			return nil, fmt.Errorf("MAX_PACKET_SIZE must be at least 3, got %d", size)
		}
		cfg.MaxPacketSize = size
	}

	if raw := os.Getenv("VERBOSE"); raw == "1" || raw == "true" {
		cfg.Verbose = true
	}

	return cfg, nil
}
