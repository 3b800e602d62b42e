package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/util"
)

// newAPI builds a pion API whose internal logging goes through util.
func newAPI() *webrtc.API {
	se := webrtc.SettingEngine{
		LoggerFactory: util.PionLoggerFactory{},
	}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

// newPeerConnection creates a PeerConnection using the given discovery
// servers. No TURN: the call is expected to connect directly.
func newPeerConnection(iceServers []string) (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{}
	if len(iceServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{
			{URLs: iceServers},
		}
	}
	return newAPI().NewPeerConnection(config)
}
