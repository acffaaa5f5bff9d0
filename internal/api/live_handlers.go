package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const liveKeepaliveInterval = 15 * time.Second

// LiveStream handles GET /live/stream?topics=bus:3,route:2 as a server-sent
// event stream. Subscriptions are per-connection; delivery is at-most-once
// with no replay, so clients that reconnect must poll the REST read path to
// resync before resuming.
func (a *API) LiveStream(c *fiber.Ctx) error {
	topicsParam := c.Query("topics")
	if topicsParam == "" {
		return badRequest(c, "missing required parameter: topics")
	}

	topics := strings.Split(topicsParam, ",")
	for _, t := range topics {
		if !strings.HasPrefix(t, "bus:") && !strings.HasPrefix(t, "route:") {
			return badRequest(c, fmt.Sprintf("unknown topic %q (use bus:<id> or route:<id>)", t))
		}
	}

	sub := a.Hub.NewSubscriber(32)
	for _, t := range topics {
		a.Hub.Subscribe(t, sub)
	}
	a.Metrics.LiveSubscribers.Inc()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	hub := a.Hub
	gauge := a.Metrics.LiveSubscribers
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			hub.Close(sub)
			gauge.Dec()
		}()

		keepalive := time.NewTicker(liveKeepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case msg, open := <-sub.C():
				if !open {
					return
				}
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: busLocationUpdate\ndata: %s\n\n", data)
				if err := w.Flush(); err != nil {
					return
				}
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}
