package ice

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // coturn's static-auth-secret scheme is HMAC-SHA1
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// DefaultStunURL is used when no STUN_URL is configured.
const DefaultStunURL = "stun.l.google.com:19302"

// DefaultTurnAuthExpiration bounds the validity of derived TURN credentials.
const DefaultTurnAuthExpiration = 3 * time.Hour

// Provider derives ICE server lists from static configuration. TURN entries
// carry time-limited credentials in the coturn static-auth-secret format.
type Provider struct {
	StunURL            string
	TurnURL            string
	TurnAuth           string
	TurnAuthExpiration time.Duration

	Logger logging.LeveledLogger
}

// ClientICEServer is the browser-facing shape of an ICE server entry. Empty
// username/credential are rendered as absent fields.
type ClientICEServer struct {
	URLs           []string `json:"urls"`
	Username       *string  `json:"username,omitempty"`
	Credential     *string  `json:"credential,omitempty"`
	CredentialType string   `json:"credentialType"`
}

// ServerConfig returns the ICE servers for a peer connection. name is baked
// into the TURN username so sessions are distinguishable on the TURN server.
func (p *Provider) ServerConfig(name string) []webrtc.ICEServer {
	stunURL := p.StunURL
	if stunURL == "" {
		p.Logger.Infof("STUN_URL is not specified so use the default value")
		stunURL = DefaultStunURL
	}

	servers := []webrtc.ICEServer{
		{URLs: []string{"stun:" + stunURL}},
	}

	if p.TurnURL == "" || p.TurnAuth == "" {
		p.Logger.Infof("TURN_URL and TURN_AUTH are not specified")
		return servers
	}

	expiration := p.TurnAuthExpiration
	if expiration <= 0 {
		expiration = DefaultTurnAuthExpiration
	}

	username, credential := coturnCredential(p.TurnAuth, name, time.Now(), expiration)
	servers = append(servers, webrtc.ICEServer{
		URLs:       []string{"turn:" + p.TurnURL},
		Username:   username,
		Credential: credential,
	})

	return servers
}

// BrowserServerConfig returns the same server list in the shape an
// RTCPeerConnection constructor expects on the client side.
func (p *Provider) BrowserServerConfig(name string) []ClientICEServer {
	servers := p.ServerConfig(name)
	ret := make([]ClientICEServer, 0, len(servers))

	for _, server := range servers {
		client := ClientICEServer{
			URLs:           server.URLs,
			CredentialType: "password",
		}
		if server.Username != "" {
			username := server.Username
			client.Username = &username
		}
		if credential, ok := server.Credential.(string); ok && credential != "" {
			client.Credential = &credential
		}
		ret = append(ret, client)
	}

	return ret
}

// coturnCredential implements the TURN REST API credential scheme: the
// username is "<unix expiry>:<name>" and the credential is
// base64(HMAC-SHA1(secret, username)).
func coturnCredential(secret, name string, now time.Time, expiresAfter time.Duration) (username, credential string) {
	expiry := now.Add(expiresAfter).Unix()
	username = fmt.Sprintf("%s:%s", strconv.FormatInt(expiry, 10), name)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	credential = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return username, credential
}
