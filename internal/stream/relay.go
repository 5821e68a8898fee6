package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/browserkube-console/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Relay bridges a local websocket client to an upstream session socket
type Relay struct {
	dialer *websocket.Dialer
	log    zerolog.Logger
}

// NewRelay creates a relay
func NewRelay() *Relay {
	return &Relay{
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    logging.For("relay"),
	}
}

// Serve upgrades the request, dials upstream and copies messages both ways until either
// side closes
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, upstreamURL string) {
	clientConn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer clientConn.Close()

	ctx, cancel := context.WithTimeout(req.Context(), 10*time.Second)
	defer cancel()

	upstream, _, err := r.dialer.DialContext(ctx, upstreamURL, nil)
	if err != nil {
		r.log.Error().Err(err).Str("upstream", upstreamURL).Msg("❌ Failed to connect upstream")
		clientConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, fmt.Sprintf("upstream: %v", err)))
		return
	}
	defer upstream.Close()

	r.log.Info().Str("upstream", upstreamURL).Msg("✅ Relay connected")

	errChan := make(chan error, 2)
	go func() {
		errChan <- r.copy(clientConn, upstream, "client→upstream")
	}()
	go func() {
		errChan <- r.copy(upstream, clientConn, "upstream→client")
	}()

	err = <-errChan
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
		!errors.Is(err, websocket.ErrCloseSent) {
		r.log.Debug().Err(err).Msg("Relay ended")
	}
	r.log.Info().Str("upstream", upstreamURL).Msg("Relay disconnected")
}

func (r *Relay) copy(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.Debug().Err(err).Str("direction", direction).Msg("WebSocket error")
			}
			if ce, ok := err.(*websocket.CloseError); ok {
				dst.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(ce.Code, ce.Text))
			}
			return err
		}
		if err := dst.WriteMessage(messageType, message); err != nil {
			r.log.Debug().Err(err).Str("direction", direction).Msg("Failed to write message")
			return err
		}
	}
}
