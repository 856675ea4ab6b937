package api

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

// backoffLimiter tracks attempts per key and enforces exponential backoff
// once a threshold is reached. The login limiters count failures only and
// reset on success; the registration limiter counts every request.
type backoffLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord

	maxAttempts int
	baseLockout time.Duration
	maxLockout  time.Duration
	expiry      time.Duration
	now         func() time.Time
}

type attemptRecord struct {
	count       int
	last        time.Time
	lockedUntil time.Time
}

const (
	// maxFailures is the number of consecutive failures per email before
	// lockout begins.
	maxFailures = 5
	baseLockout = 1 * time.Minute
	maxLockout  = 15 * time.Minute

	// Per source IP. Higher, since a NAT can hide many users.
	ipMaxFailures = 20
	ipBaseLockout = 1 * time.Minute
	ipMaxLockout  = 30 * time.Minute

	regIPMaxRequests = 5
	regIPBaseLockout = 5 * time.Minute
	regIPMaxLockout  = 1 * time.Hour

	// attemptExpiry is how long after the last attempt before the record is
	// garbage-collected.
	attemptExpiry = 1 * time.Hour
)

func newBackoffLimiter(maxAttempts int, base, max time.Duration) *backoffLimiter {
	return &backoffLimiter{
		attempts:    make(map[string]*attemptRecord),
		maxAttempts: maxAttempts,
		baseLockout: base,
		maxLockout:  max,
		expiry:      attemptExpiry,
		now:         time.Now,
	}
}

func newLoginRateLimiter() *backoffLimiter {
	return newBackoffLimiter(maxFailures, baseLockout, maxLockout)
}

func newIPRateLimiter() *backoffLimiter {
	return newBackoffLimiter(ipMaxFailures, ipBaseLockout, ipMaxLockout)
}

func newRegistrationIPLimiter() *backoffLimiter {
	return newBackoffLimiter(regIPMaxRequests, regIPBaseLockout, regIPMaxLockout)
}

// check returns true if key is currently locked out, along with how long
// the caller should wait.
func (rl *backoffLimiter) check(key string) (blocked bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok {
		return false, 0
	}
	now := rl.now()
	if now.Sub(rec.last) > rl.expiry {
		delete(rl.attempts, key)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// record counts one attempt against key and applies backoff:
// baseLockout * 2^(count - maxAttempts), capped at maxLockout.
func (rl *backoffLimiter) record(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok {
		rec = &attemptRecord{}
		rl.attempts[key] = rec
	}
	now := rl.now()
	rec.count++
	rec.last = now

	if rec.count >= rl.maxAttempts {
		lockout := rl.baseLockout
		for i := 0; i < rec.count-rl.maxAttempts; i++ {
			lockout *= 2
			if lockout >= rl.maxLockout {
				lockout = rl.maxLockout
				break
			}
		}
		rec.lockedUntil = now.Add(lockout)
	}
}

// reset forgets key, e.g. after a successful login.
func (rl *backoffLimiter) reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// sweep removes expired records. Call periodically from a background goroutine.
func (rl *backoffLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, rec := range rl.attempts {
		if now.Sub(rec.last) > rl.expiry {
			delete(rl.attempts, key)
		}
	}
}

// writeRateLimited sends a 429 Too Many Requests response.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration, msg string) {
	w.Header().Set("Retry-After", retryAfterString(retryAfter))
	writeError(w, http.StatusTooManyRequests, msg)
}

func retryAfterString(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP returns the client IP for rate limiting using the API's trusted
// proxies.
func (a *API) clientIP(r *http.Request) string {
	return extractClientIPWithProxies(r, a.trustedProxies)
}

// extractClientIPWithProxies returns the best-effort client IP address.
//
// Proxy headers (X-Forwarded-For, Forwarded, X-Real-IP) are only honored
// if the request's RemoteAddr falls within one of trustedProxies. With no
// trusted proxies RemoteAddr is always returned, so clients cannot spoof
// their source address.
//
// Priority when proxy headers are trusted:
// 1. First valid entry in X-Forwarded-For
// 2. First valid "for=" value in Forwarded
// 3. X-Real-IP
// 4. RemoteAddr
func extractClientIPWithProxies(r *http.Request, trustedProxies []netip.Prefix) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := false
	if len(trustedProxies) > 0 && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for part := range strings.SplitSeq(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}

		if fwd := strings.TrimSpace(r.Header.Get("Forwarded")); fwd != "" {
			for elem := range strings.SplitSeq(fwd, ",") {
				for param := range strings.SplitSeq(elem, ";") {
					param = strings.TrimSpace(param)
					if !strings.HasPrefix(strings.ToLower(param), "for=") {
						continue
					}
					if ip, ok := parseIPCandidate(param[4:]); ok {
						return ip
					}
				}
			}
		}

		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	return remoteIP
}

// ParseTrustedProxies parses a list of CIDRs or bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return nil, err
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(v)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	if s == "" {
		return "", false
	}

	// RFC 7239 quoted IPv6 may appear as [::1]:1234.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	// Drop zone if any (e.g. fe80::1%eth0).
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String(), true
	}
	return "", false
}
