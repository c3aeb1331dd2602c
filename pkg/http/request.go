package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// MaxBodyBytes caps request bodies decoded by DecodeJSON.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes a single JSON object from the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// IPResolver finds the client address of a request. Forwarding headers are
// honoured only when the direct peer is inside a trusted proxy range.
type IPResolver struct {
	trusted []*net.IPNet
}

// NewIPResolver parses the trusted proxy CIDR ranges. Invalid ranges are
// reported, not skipped.
func NewIPResolver(trustedProxies []string) (*IPResolver, error) {
	res := &IPResolver{}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		res.trusted = append(res.trusted, ipNet)
	}
	return res, nil
}

// ClientIP returns the first valid X-Forwarded-For entry, then X-Real-IP,
// when the peer is trusted, and the peer address otherwise.
func (res *IPResolver) ClientIP(r *http.Request) string {
	peer := peerAddr(r)

	if res == nil || !res.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	return peer
}

func (res *IPResolver) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range res.trusted {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}

func peerAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
