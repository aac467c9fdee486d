package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Handler upgrades HTTP requests to WebSocket and streams events for one
// chart. chartID is resolved per request; a nil resolver streams all
// charts.
func Handler(broker *Broker, chartID func(r *http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("ws upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		wantChart := ""
		if chartID != nil {
			wantChart = chartID(r)
		}

		id, events := broker.Subscribe()
		slog.Info("stream client connected", "subscriber_id", id, "chart_id", wantChart, "remote", r.RemoteAddr)

		// the reader only watches for close/error so a dead peer releases
		// its subscription
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		go func() {
			defer func() {
				broker.Unsubscribe(id)
				if err := conn.Close(); err != nil && err != io.EOF {
					slog.Debug("stream close failed", "subscriber_id", id, "error", err)
				}
				slog.Info("stream client disconnected", "subscriber_id", id)
			}()
			for {
				select {
				case evt, ok := <-events:
					if !ok {
						return
					}
					if wantChart != "" && evt.ChartID != wantChart {
						continue
					}
					payload, err := json.Marshal(evt)
					if err != nil {
						slog.Error("stream event marshal failed", "error", err)
						continue
					}
					if err := wsutil.WriteServerText(conn, payload); err != nil {
						slog.Debug("stream write failed, dropping client", "subscriber_id", id, "error", err)
						return
					}
				case <-done:
					return
				}
			}
		}()
	})
}
