package console

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// TCPConfig configures the TCP console listener
type TCPConfig struct {
	Address string

	// TLSCert and TLSKey enable TLS when both are set
	TLSCert string
	TLSKey  string

	// ClientCA requires clients to present a certificate signed by this CA
	ClientCA string
}

// TCPListener serves the console protocol to TCP clients, one goroutine per connection
type TCPListener struct {
	cfg    TCPConfig
	proto  *Protocol
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewTCPListener creates a TCP console listener
func NewTCPListener(cfg TCPConfig, proto *Protocol, logger *zap.Logger) *TCPListener {
	return &TCPListener{
		cfg:    cfg,
		proto:  proto,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// ServerTLSConfig builds the listener TLS configuration, or nil when TLS is off
func ServerTLSConfig(cfg TCPConfig) (*tls.Config, error) {
	if cfg.TLSCert == "" && cfg.TLSKey == "" {
		if cfg.ClientCA != "" {
			return nil, fmt.Errorf("client_ca requires tls_cert and tls_key")
		}
		return nil, nil
	}
	if cfg.TLSCert == "" || cfg.TLSKey == "" {
		return nil, fmt.Errorf("tls_cert and tls_key must be set together")
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load console certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	if cfg.ClientCA != "" {
		pem, err := os.ReadFile(cfg.ClientCA)
		if err != nil {
			return nil, fmt.Errorf("read client ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.ClientCA)
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsCfg, nil
}

// Start binds the address and accepts connections in the background
func (l *TCPListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener != nil {
		return fmt.Errorf("tcp console already running")
	}

	tlsCfg, err := ServerTLSConfig(l.cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.cfg.Address, err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.listener = ln
	l.cancel = cancel

	l.wg.Add(1)
	go l.acceptLoop(runCtx, ln)

	l.logger.Info("TCP console listening",
		zap.String("address", ln.Addr().String()),
		zap.Bool("tls", tlsCfg != nil),
		zap.Bool("client_auth", l.cfg.ClientCA != ""))
	return nil
}

// Addr returns the bound address, or nil before Start
func (l *TCPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Stop closes the listener and every open connection, then waits for handlers
func (l *TCPListener) Stop() error {
	l.mu.Lock()
	if l.listener == nil {
		l.mu.Unlock()
		return nil
	}
	l.cancel()
	err := l.listener.Close()
	l.listener = nil
	for c := range l.conns {
		_ = c.Close()
	}
	l.mu.Unlock()

	l.wg.Wait()
	l.logger.Info("TCP console stopped")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Name returns the worker name for identification
func (l *TCPListener) Name() string {
	return "TCPConsole"
}

func (l *TCPListener) acceptLoop(ctx context.Context, ln net.Listener) {
	defer l.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn("Accept failed", zap.Error(err))
			continue
		}

		if !l.track(conn) {
			_ = conn.Close()
			return
		}

		l.wg.Add(1)
		go l.serve(ctx, conn)
	}
}

func (l *TCPListener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *TCPListener) untrack(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, conn)
}

func (l *TCPListener) serve(ctx context.Context, conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	session := l.proto.NewSession(peer)
	newline := l.proto.Dialect().Newline()
	l.logger.Debug("Console client connected", zap.String("peer", peer))

	scanner := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for scanner.Scan() {
		replies := session.Handle(ctx, scanner.Text())
		if len(replies) == 0 {
			continue
		}
		if _, err := w.WriteString(strings.Join(replies, newline) + newline); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		l.logger.Debug("Console client read error", zap.String("peer", peer), zap.Error(err))
	}
	l.logger.Debug("Console client disconnected", zap.String("peer", peer))
}
