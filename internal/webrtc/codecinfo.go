package webrtc

import (
	"encoding/base64"
	"fmt"
	"strings"

	"hksv_home/bridge/internal/rtp"

	"github.com/pion/sdp/v3"
)

// CodecInfoFromSDP extracts the H264 SPS and PPS from the first video
// fmtp line carrying sprop-parameter-sets. Cameras that signal codec
// parameters in-band omit the attribute; that is not an error and yields
// an empty CodecInfo.
func CodecInfoFromSDP(raw string) (rtp.CodecInfo, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return rtp.CodecInfo{}, fmt.Errorf("parse sdp: %w", err)
	}

	for _, media := range desc.MediaDescriptions {
		if media.MediaName.Media != "video" {
			continue
		}
		for _, attr := range media.Attributes {
			if attr.Key != "fmtp" {
				continue
			}
			// fmtp value: "<payload type> key=val;key=val;..."
			_, params, found := strings.Cut(attr.Value, " ")
			if !found {
				continue
			}
			for _, param := range strings.Split(params, ";") {
				key, value, found := strings.Cut(strings.TrimSpace(param), "=")
				if !found || key != "sprop-parameter-sets" {
					continue
				}
				return codecInfoFromSprop(value)
			}
		}
	}
	return rtp.CodecInfo{}, nil
}

// codecInfoFromSprop decodes a sprop-parameter-sets value: base64 NAL
// units separated by commas, conventionally SPS then PPS.
func codecInfoFromSprop(value string) (rtp.CodecInfo, error) {
	var info rtp.CodecInfo
	for _, set := range strings.Split(value, ",") {
		nalu, err := base64.StdEncoding.DecodeString(set)
		if err != nil {
			return rtp.CodecInfo{}, fmt.Errorf("decode sprop-parameter-sets: %w", err)
		}
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1f {
		case 7:
			info.SPS = nalu
		case 8:
			info.PPS = nalu
		}
	}
	return info, nil
}
