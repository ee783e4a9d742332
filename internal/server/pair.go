package server

import (
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"
)

const pairQRSize = 256

// pairingURL builds the WebSocket URL a phone or second screen scans to
// attach as a controller. The token is omitted when control is open.
func pairingURL(auth *Auth, host string, secure bool) (string, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	if secure {
		u.Scheme = "wss"
	}
	if auth != nil && auth.Required() {
		tok, err := auth.IssueToken()
		if err != nil {
			return "", fmt.Errorf("issuing pairing token: %w", err)
		}
		u.RawQuery = url.Values{"token": {tok}}.Encode()
	}
	return u.String(), nil
}

// pairingCode renders pairingURL as a PNG QR code
func pairingCode(auth *Auth, host string, secure bool) ([]byte, error) {
	link, err := pairingURL(auth, host, secure)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(link, qrcode.Medium, pairQRSize)
}
