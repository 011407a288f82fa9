// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/yl2chen/cidranger"

	"github.com/tomtom215/reqguard/internal/logging"
)

// forwardingHeaders are consulted in order when the peer is a trusted proxy.
var forwardingHeaders = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

// ClientIPResolver determines the client address of a request. Forwarding
// headers are honoured only when the direct peer is inside a trusted range;
// otherwise any client could choose its own identity.
type ClientIPResolver struct {
	trusted cidranger.Ranger
	count   int
}

// NewClientIPResolver builds a resolver from CIDR ranges or bare IPs.
func NewClientIPResolver(trusted []string) (*ClientIPResolver, error) {
	r := &ClientIPResolver{trusted: cidranger.NewPCTrieRanger()}
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil && ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		if err := r.trusted.Insert(cidranger.NewBasicRangerEntry(*network)); err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		r.count++
	}
	return r, nil
}

// IsTrusted reports whether ip is inside a trusted proxy range.
func (r *ClientIPResolver) IsTrusted(ip net.IP) bool {
	if r == nil || r.count == 0 || ip == nil {
		return false
	}
	ok, err := r.trusted.Contains(ip)
	return err == nil && ok
}

// PeerTrusted reports whether the direct peer of req is a trusted proxy.
func (r *ClientIPResolver) PeerTrusted(req *http.Request) bool {
	return r.IsTrusted(net.ParseIP(peerAddr(req)))
}

// Resolve returns the client IP for req. For X-Forwarded-For the rightmost
// address that is not itself a trusted proxy is used.
func (r *ClientIPResolver) Resolve(req *http.Request) string {
	peer := peerAddr(req)
	if !r.IsTrusted(net.ParseIP(peer)) {
		return peer
	}

	for _, header := range forwardingHeaders {
		value := req.Header.Get(header)
		if value == "" {
			continue
		}
		if header == "X-Forwarded-For" {
			if ip := r.fromForwardedFor(req.Header.Values(header)); ip != "" {
				return ip
			}
			continue
		}
		if ip := net.ParseIP(strings.TrimSpace(value)); ip != nil {
			return ip.String()
		}
	}
	return peer
}

func (r *ClientIPResolver) fromForwardedFor(values []string) string {
	var hops []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			hops = append(hops, strings.TrimSpace(part))
		}
	}

	var leftmost string
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(hops[i])
		if ip == nil {
			// Anything left of a malformed hop is client-controlled.
			break
		}
		leftmost = ip.String()
		if !r.IsTrusted(ip) {
			return leftmost
		}
	}
	return leftmost
}

// Middleware stores the resolved client IP in the request context, where
// it also tags every line logged through logging.Ctx.
func (r *ClientIPResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := logging.WithRequestFields(req.Context(), logging.RequestFields{ClientIP: r.Resolve(req)})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// ClientIPFromContext returns the IP stored by ClientIPResolver.Middleware.
func ClientIPFromContext(ctx context.Context) string {
	return logging.RequestFieldsFromContext(ctx).ClientIP
}

func peerAddr(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
