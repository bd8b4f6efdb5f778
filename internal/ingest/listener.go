package ingest

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cepflow/cepflow/internal/core"
	"github.com/rs/zerolog"
)

// Listener accepts newline-delimited JSON events over UDP and/or TCP and
// feeds them into the engine. It is a producer-side adapter: the engine's
// ingestion semantics do not depend on it.
type Listener struct {
	cfg     *core.IngestConfig
	engine  *core.Engine
	logger  zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	udpConn *net.UDPConn
	tcpLn   net.Listener
}

// NewListener creates a new line listener feeding the given engine.
func NewListener(cfg *core.IngestConfig, engine *core.Engine, logger zerolog.Logger) *Listener {
	return &Listener{
		cfg:    cfg,
		engine: engine,
		logger: logger.With().Str("component", "line_ingest").Logger(),
	}
}

// Start begins listening for events.
func (l *Listener) Start(ctx context.Context) error {
	l.ctx, l.cancel = context.WithCancel(ctx)

	proto := strings.ToLower(l.cfg.Protocol)
	addr := fmt.Sprintf("%s:%d", l.cfg.Host, l.cfg.Port)

	if proto == "udp" || proto == "both" {
		if err := l.startUDP(addr); err != nil {
			return fmt.Errorf("starting ingest UDP listener: %w", err)
		}
	}

	if proto == "tcp" || proto == "both" {
		if err := l.startTCP(addr); err != nil {
			return fmt.Errorf("starting ingest TCP listener: %w", err)
		}
	}

	l.logger.Info().Str("addr", addr).Str("protocol", proto).Msg("line ingestion started")
	return nil
}

// Stop shuts down the listener.
func (l *Listener) Stop() error {
	if l.cancel != nil {
		l.cancel()
	}
	if l.udpConn != nil {
		l.udpConn.Close()
	}
	if l.tcpLn != nil {
		l.tcpLn.Close()
	}
	l.logger.Info().Msg("line ingestion stopped")
	return nil
}

func (l *Listener) startUDP(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolving UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening on UDP %s: %w", addr, err)
	}
	l.udpConn = conn

	go func() {
		buf := make([]byte, 65536)
		for {
			select {
			case <-l.ctx.Done():
				return
			default:
			}

			l.udpConn.SetReadDeadline(time.Now().Add(1 * time.Second))
			n, remoteAddr, err := l.udpConn.ReadFromUDP(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if l.ctx.Err() != nil {
					return
				}
				l.logger.Error().Err(err).Msg("UDP read error")
				continue
			}

			remote := ""
			if remoteAddr != nil {
				remote = remoteAddr.IP.String()
			}
			l.processLine(buf[:n], remote)
		}
	}()

	l.logger.Info().Str("addr", addr).Msg("ingest UDP listener started")
	return nil
}

func (l *Listener) startTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on TCP %s: %w", addr, err)
	}
	l.tcpLn = ln

	go func() {
		for {
			select {
			case <-l.ctx.Done():
				return
			default:
			}

			conn, err := ln.Accept()
			if err != nil {
				if l.ctx.Err() != nil {
					return
				}
				l.logger.Error().Err(err).Msg("TCP accept error")
				continue
			}

			go l.handleTCPConn(conn)
		}
	}()

	l.logger.Info().Str("addr", addr).Msg("ingest TCP listener started")
	return nil
}

func (l *Listener) handleTCPConn(conn net.Conn) {
	defer conn.Close()

	remote := ""
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		remote = addr.IP.String()
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 65536), 65536)

	for scanner.Scan() {
		select {
		case <-l.ctx.Done():
			return
		default:
		}
		l.processLine(scanner.Bytes(), remote)
	}

	if err := scanner.Err(); err != nil && l.ctx.Err() == nil {
		l.logger.Debug().Err(err).Str("remote", remote).Msg("TCP connection read error")
	}
}

// processLine parses one JSON event line and hands it to the engine.
// Malformed lines are dropped with a debug log: a misbehaving producer
// must not be able to fail the listener.
func (l *Listener) processLine(line []byte, remote string) {
	event, err := core.UnmarshalEvent(line)
	if err != nil {
		l.logger.Debug().Err(err).Str("remote", remote).Msg("dropping unparseable event line")
		return
	}

	if event.ID == "" {
		event.ID = "line-" + time.Now().UTC().Format("20060102150405.000000")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = remote
	}

	if err := l.engine.Ingest(event); err != nil {
		l.logger.Error().Err(err).Str("remote", remote).Msg("failed to ingest event")
	}
}
