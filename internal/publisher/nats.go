package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/fgcagents/geomatching/internal/match"
)

// NATSPublisher pushes each cycle's match records onto NATS, one message
// per match, subject per line, for downstream consumers that want the
// stream without polling the HTTP API. Optional: the service runs fine
// with a nil *NATSPublisher.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// New connects to NATS. Reconnection is handled by the client; we only
// log state changes.
func New(url, subjectPrefix string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("geomatching"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: subjectPrefix, logger: logger}, nil
}

// PublishMatches sends one message per match record. Publish failures are
// logged, not surfaced: losing a diagnostics message never fails a cycle.
func (p *NATSPublisher) PublishMatches(matches []match.Match) {
	if p == nil {
		return
	}
	for _, m := range matches {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		subject := p.prefix + "." + sanitizeToken(m.Line) + "." + sanitizeToken(m.Train)
		if err := p.nc.Publish(subject, data); err != nil {
			p.logger.Warn("nats publish failed", "subject", subject, "error", err)
		}
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p == nil {
		return
	}
	_ = p.nc.Drain()
}

// sanitizeToken makes a value safe for use as a NATS subject token.
func sanitizeToken(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "*", "-")
	s = strings.ReplaceAll(s, ">", "-")
	return s
}
