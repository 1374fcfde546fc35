// Package interceptors provides gRPC client interceptors used when dialing
// the host: a per-call timeout for unary RPCs and retry with exponential
// backoff for transient failures.
package interceptors

import (
	"context"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

func defaults() Config {
	return Config{Timeout: 5 * time.Second, MaxAttempts: 3, BackoffBase: 100 * time.Millisecond}
}

func retryable(err error) bool {
	st, _ := status.FromError(err)
	return st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded
}

func backoff(ctx context.Context, base time.Duration, attempt int) error {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Chain returns dial options installing both interceptors. A nil cfg uses
// the defaults. Streams are never given a timeout; only their establishment
// is retried.
func Chain(cfg *Config) []grpc.DialOption {
	c := defaults()
	if cfg != nil {
		c = *cfg
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}

	ui := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok && c.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}
		for a := 1; ; a++ {
			err := invoker(ctx, method, req, reply, cc, opts...)
			if err == nil || a >= c.MaxAttempts || !retryable(err) {
				return err
			}
			if err := backoff(ctx, c.BackoffBase, a); err != nil {
				return err
			}
		}
	}

	si := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		for a := 1; ; a++ {
			cs, err := streamer(ctx, desc, cc, method, opts...)
			if err == nil {
				return cs, nil
			}
			if a >= c.MaxAttempts || !retryable(err) {
				return nil, err
			}
			if err := backoff(ctx, c.BackoffBase, a); err != nil {
				return nil, err
			}
		}
	}

	return []grpc.DialOption{grpc.WithChainUnaryInterceptor(ui), grpc.WithChainStreamInterceptor(si)}
}
