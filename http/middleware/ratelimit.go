package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"triaright-platform/http/response"
	"triaright-platform/logger"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client IP in fixed Redis windows.
type RateLimiter struct {
	redisClient *redis.Client
	trusted     []netip.Prefix
}

// NewRateLimiter returns a limiter; a nil client lets every request through.
// X-Forwarded-For is only read when the direct peer is one of trustedProxies
// (single IPs or CIDRs); unparsable entries are logged and skipped.
func NewRateLimiter(client *redis.Client, trustedProxies []string) *RateLimiter {
	rl := &RateLimiter{redisClient: client}
	for _, p := range trustedProxies {
		prefix, err := parsePrefix(p)
		if err != nil {
			logger.Warn("[RATELIMIT] ignoring trusted proxy %q: %v", p, err)
			continue
		}
		rl.trusted = append(rl.trusted, prefix)
	}
	return rl
}

func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()), nil
}

func (rl *RateLimiter) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range rl.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP keys on the TCP peer. Behind trusted proxies it walks
// X-Forwarded-For right to left and takes the first untrusted hop, since
// only the entries appended by our own proxies can be believed.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !rl.isTrusted(peer) {
		return peer
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !rl.isTrusted(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

// Limit allows limit requests per window for the named route group.
func (rl *RateLimiter) Limit(keySuffix string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil || rl.redisClient == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := fmt.Sprintf("rate_limit:%s:%s", keySuffix, rl.clientIP(r))

			count, err := rl.redisClient.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("[RATELIMIT] redis unavailable, allowing request: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rl.redisClient.Expire(ctx, key, window)
			}

			if count > int64(limit) {
				ttl, _ := rl.redisClient.TTL(ctx, key).Result()
				if ttl < 0 {
					// key lost its expiry; restore it so the client is not locked out
					rl.redisClient.Expire(ctx, key, window)
					ttl = window
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds()+0.5)))
				response.ErrorResponse(w, http.StatusTooManyRequests, "too many requests, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
