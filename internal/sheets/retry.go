package sheets

// retry.go classifies spreadsheet API failures and builds the backoff policy.
//
// Transient (retried): HTTP 408, 429 and 5xx, the 403 variants Google uses
// for per-user quota, per-call timeouts, network timeouts and refused or
// reset connections. Everything else (bad request, credentials, certificate
// and DNS failures, missing spreadsheet) is returned to the caller on the
// first attempt.

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrUnavailable is returned when a call keeps failing with transient errors
// until the retry budget is spent. Retrying the whole operation later is safe.
var ErrUnavailable = errors.New("store unavailable")

// Defaults for RetryPolicy fields left at zero.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 8 * time.Second
	DefaultCallTimeout = 15 * time.Second
	DefaultJitter      = 0.2
)

// RetryPolicy bounds how long a single logical operation may keep trying.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // wait before the first retry; doubles each retry
	MaxDelay    time.Duration // cap on a single wait
	CallTimeout time.Duration // deadline for one API call
	Jitter      float64       // randomisation factor in [0,1); 0 disables
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		CallTimeout: DefaultCallTimeout,
		Jitter:      DefaultJitter,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = d.CallTimeout
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = d.Jitter
	}
	return p
}

// newBackOff builds a fresh exponential schedule limited to MaxAttempts-1
// retries and bound to ctx.
func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: p.Jitter,
		Multiplier:          2,
		MaxInterval:         p.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// quotaReasons are the googleapi error reasons that signal throttling even
// when the status code is 403.
var quotaReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		case http.StatusForbidden:
			for _, item := range gerr.Errors {
				if quotaReasons[item.Reason] {
					return true
				}
			}
		}
		return false
	}

	// Token fetches and TLS handshakes fail inside *url.Error, which is a
	// net.Error, so rule them out before looking at the network layer.
	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		return false
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return false
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
