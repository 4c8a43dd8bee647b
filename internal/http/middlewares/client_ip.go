package middlewares

import (
	"net"
	"net/netip"
	"strings"

	"github.com/a-szyszlo/event-manager/internal/actorctx"
	"github.com/gin-gonic/gin"
)

const unknownIP = "0.0.0.0"

// Proxy headers checked in order when they are trusted. Values may list
// several addresses; the first valid one wins.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"X-Cluster-Client-IP",
	"Forwarded-For",
	"Forwarded",
}

// ClientIP resolves the visitor address once per request and stores it under
// CtxClientIP and, with the request id, as the request's actor. The value is for auditing and rate limiting only; proxy
// headers are spoofable and are ignored unless trustProxy is set.
func ClientIP(trustProxy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ResolveClientIP(c, trustProxy)
		c.Set(CtxClientIP, ip)
		c.Request = c.Request.WithContext(actorctx.With(c.Request.Context(), actorctx.Actor{
			RequestID: c.GetString(CtxRequestID),
			ClientIP:  ip,
		}))
		c.Next()
	}
}

func ResolveClientIP(c *gin.Context, trustProxy bool) string {
	if trustProxy {
		for _, h := range proxyHeaders {
			if ip, ok := firstValidIP(c.GetHeader(h)); ok {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err != nil {
		host = c.Request.RemoteAddr
	}
	if ip, ok := firstValidIP(host); ok {
		return ip
	}

	return unknownIP
}

// ClientIPFrom returns the address stored by ClientIP.
func ClientIPFrom(c *gin.Context) string {
	if ip := c.GetString(CtxClientIP); ip != "" {
		return ip
	}
	return ResolveClientIP(c, false)
}

func firstValidIP(value string) (string, bool) {
	if value == "" {
		return "", false
	}

	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		// RFC 7239: for=192.0.2.60;proto=http
		for _, pair := range strings.Split(raw, ";") {
			pair = strings.TrimSpace(pair)
			if k, v, ok := strings.Cut(pair, "="); ok {
				if !strings.EqualFold(k, "for") {
					continue
				}
				pair = strings.Trim(v, `"`)
			}

			if addr, err := netip.ParseAddr(pair); err == nil {
				return addr.WithZone("").String(), true
			}
			// "[2001:db8::1]:4711" or "192.0.2.60:80"
			if ap, err := netip.ParseAddrPort(pair); err == nil {
				return ap.Addr().WithZone("").String(), true
			}
			if addr, err := netip.ParseAddr(strings.Trim(pair, "[]")); err == nil {
				return addr.WithZone("").String(), true
			}
		}
	}
	return "", false
}
