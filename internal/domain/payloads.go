package domain

// Ticket holds signaling credentials and ICE server configuration returned
// by the camera cloud API.
type Ticket struct {
	TraceID            string      `json:"traceId"`
	GroupID            string      `json:"groupId"`
	Role               string      `json:"role"`
	ID                 string      `json:"id"`
	ICEServers         []ICEServer `json:"iceServer"`
	SignalServer       string      `json:"signalServer"`
	SignalServerIP     string      `json:"signalServerIpAddress"`
	Sign               string      `json:"sign"`
	SignalPingInterval int         `json:"signalPingInterval"`
	Time               int64       `json:"time"`
	ExpirationTime     int64       `json:"expirationTime"`
	WebsocketPath      string      `json:"websocketPath"`
	AccessToken        string      `json:"accessToken"`
}

// ICEServer holds STUN/TURN server configuration.
type ICEServer struct {
	URL        string `json:"url"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
	IPAddress  string `json:"ipAddress"`
}

// SDPPayload is the JSON structure for SDP offer/answer messages.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidatePayload is the JSON structure for ICE candidate messages.
type ICECandidatePayload struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}
