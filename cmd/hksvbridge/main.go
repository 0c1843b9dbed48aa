package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"hksv_home/bridge/internal/api"
	"hksv_home/bridge/internal/config"
	"hksv_home/bridge/internal/homekit"
	sigclient "hksv_home/bridge/internal/signal"
	"hksv_home/bridge/internal/stream"
	"hksv_home/bridge/internal/viewer"
	"hksv_home/bridge/internal/webrtc"

	"github.com/pion/logging"
)

const helpText = `hksvbridge - Bridge a cloud camera's H264 stream to a HomeKit Secure Video receiver

Usage:
  hksvbridge [options]

RTP packets pulled from the camera over WebRTC are rewritten for the
receiver (payloads re-split to its maximum size, SPS/PPS injected ahead of
keyframes, SEI stripped) and forwarded over SRTP/UDP. Without HKSV_SRTP_KEY
the bridge sends plain RTP, which is useful against test receivers.

Environment Variables (required):
  CAMERA_TOKEN  JWT authentication token for the camera cloud API
  CAMERA_SN     Camera serial number
  HKSV_ADDR     Receiver host:port for the rewritten RTP stream

Environment Variables (optional):
  HKSV_SRTP_KEY    Base64 SRTP master key and salt (30 bytes total)
  MAX_PACKET_SIZE  Max RTP payload size the receiver accepts (default 1226)
  VERBOSE          Set to 1 for repacketizer debug logging

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	// Step 1: Fetch ticket
	apiClient := api.NewClient()
	log.Printf("[main] getting WebRTC ticket for %s", cfg.SerialNumber)
	ticket, err := apiClient.FetchTicket(cfg.Token, cfg.SerialNumber)
	if err != nil {
		log.Fatalf("[main] get ticket: %v", err)
	}
	log.Printf("[main] ticket obtained: id=%s signal=%s", ticket.ID, ticket.SignalServer)

	// Step 2: HomeKit sender
	sender, err := homekit.NewSender(cfg.ReceiverAddr, homekit.SRTPParams{
		Key:  cfg.SRTPKey,
		Salt: cfg.SRTPSalt,
	})
	if err != nil {
		log.Fatalf("[main] create sender: %v", err)
	}

	// Step 3: Forwarder (the repacketizer is armed from the SDP answer)
	logFactory := logging.NewDefaultLoggerFactory()
	if cfg.Verbose {
		logFactory.DefaultLogLevel = logging.LogLevelDebug
	}
	fwd := stream.NewForwarder(cfg.MaxPacketSize, sender, logFactory)

	// Step 4: Create peer connection
	peer, err := webrtc.NewPeer(ticket.ICEServers, cfg.SerialNumber)
	if err != nil {
		log.Fatalf("[main] create peer: %v", err)
	}

	// Step 5: Add transceivers
	if err := peer.AddTransceivers(); err != nil {
		log.Fatalf("[main] add transceivers: %v", err)
	}

	// Step 6: Route media into the forwarder
	peer.SetOnTrack(fwd)

	// Step 7: Create viewer (implements domain.Handler)
	v := viewer.New(peer, cancel)

	// Step 8: Create signal client with viewer as handler
	sc := sigclient.NewClient(ticket, cfg.SerialNumber, v)

	// Step 9: Complete the circular dependency
	v.SetSignaler(sc)

	// Step 10: Set up ICE candidate forwarding
	peer.SetOnICECandidate(func(sdpMid string, sdpMLineIndex int, candidate string) {
		sc.SendICECandidate(sdpMid, sdpMLineIndex, candidate)
	})

	// Step 11: Connect signaling (AUTH → JOIN_LIVE → PEER_IN → offer flow)
	if err := sc.Connect(); err != nil {
		log.Fatalf("[main] signal connect: %v", err)
	}

	<-ctx.Done()
	log.Printf("[main] shutting down")

	peer.Close()
	sc.Close()
	sender.Close()

	in, out := fwd.Stats()
	log.Printf("[main] session: %d packets in, %d packets out", in, out)
	log.Printf("[main] done")
}
