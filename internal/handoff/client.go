package handoff

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultConnectTimeout = 2 * time.Second
	DefaultRetryWindow    = 500 * time.Millisecond
)

// NotifyOptions bounds how long a secondary may spend reaching the
// primary.
type NotifyOptions struct {
	// Timeout applies to each connect attempt. Zero means
	// DefaultConnectTimeout.
	Timeout time.Duration

	// RetryWindow is how long to keep retrying while the socket is
	// missing or refusing connections. Zero or less means one attempt.
	RetryWindow time.Duration
}

// Notify connects to the primary's socket at path and hangs up. The
// connection itself is the signal; nothing is written.
func Notify(ctx context.Context, path string, opts NotifyOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	dialer := net.Dialer{Timeout: timeout}

	retryOpts := []backoff.RetryOption{}
	if opts.RetryWindow > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 10 * time.Millisecond
		b.MaxInterval = 100 * time.Millisecond
		b.Reset()
		retryOpts = append(retryOpts,
			backoff.WithBackOff(b),
			backoff.WithMaxElapsedTime(opts.RetryWindow),
		)
	} else {
		retryOpts = append(retryOpts, backoff.WithMaxTries(1))
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		conn, err := dialer.DialContext(ctx, "unix", path)
		if err != nil {
			if isNotListening(err) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		conn.Close()
		return struct{}{}, nil
	}, retryOpts...)
	if err != nil {
		return &ConnectError{Path: path, Attempts: attempts, Err: err}
	}
	return nil
}
