package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sketchboard/internal/discovery"
	"sketchboard/internal/version"
)

// Events subscribes to the version change feed of id. The channel is
// closed when ctx ends or the connection drops.
func (c *Client) Events(ctx context.Context, id version.Identity) (<-chan version.Event, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/sketches/events"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+id.Token)
	dialer := websocket.Dialer{HandshakeTimeout: DefaultTimeout, Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("client: events: %w", err)
	}

	out := make(chan version.Event, 8)
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var ev version.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					c.log.Info("event feed closed", slog.Any("err", err))
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Discover looks for a sketch server on the local network and returns its
// base URL.
func Discover(ctx context.Context, timeout time.Duration) (string, error) {
	e, err := discovery.Discover(ctx, timeout)
	if err != nil {
		return "", err
	}
	return e.URL(), nil
}
