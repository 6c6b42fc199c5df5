package app

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"time"

	"github.com/aq2208/pixelmart-api/configs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

var ErrBadCACert = errors.New("unable to parse CA cert")

// InitGatewayConn creates the client conn to the payment gateway bridge.
// The conn connects lazily; the first call pays the dial.
func InitGatewayConn(cfg configs.Config) (*grpc.ClientConn, func(), error) {
	g := cfg.Gateway
	dialTimeout := g.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	opts := []grpc.DialOption{
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  200 * time.Millisecond,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   5 * time.Second,
			},
			MinConnectTimeout: dialTimeout,
		}),
	}
	if g.Authority != "" {
		opts = append(opts, grpc.WithAuthority(g.Authority))
	}

	// TLS vs. insecure
	if g.TLS {
		var creds credentials.TransportCredentials
		if g.CACertFile != "" {
			pem, err := os.ReadFile(g.CACertFile)
			if err != nil {
				return nil, nil, err
			}
			pool := x509.NewCertPool()
			if ok := pool.AppendCertsFromPEM(pem); !ok {
				return nil, nil, ErrBadCACert
			}
			creds = credentials.NewTLS(&tls.Config{RootCAs: pool, ServerName: g.Authority, MinVersion: tls.VersionTLS12})
		} else {
			creds = credentials.NewClientTLSFromCert(nil, g.Authority)
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if n := g.MaxMsgBytes; n > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(n), grpc.MaxCallSendMsgSize(n)))
	}

	conn, err := grpc.NewClient(g.Target, opts...)
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { _ = conn.Close() }, nil
}
