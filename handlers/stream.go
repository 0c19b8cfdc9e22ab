package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"browsebux-economy/models"
	"browsebux-economy/services"

	"github.com/gofiber/fiber/v2"
)

const streamKeepAlive = 5 * time.Second

// writeUserEvent writes one SSE frame carrying the user record.
func writeUserEvent(w io.Writer, u models.User) error {
	payload, err := json.Marshal(newUserResponse(&u))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: user\ndata: %s\n\n", payload)
	return err
}

// streamUser pushes the user's record to the client on every change.
// fasthttp gives no signal when the client goes away; a dropped connection
// surfaces as a failed flush, at the latest on the next keep-alive.
func streamUser(c *fiber.Ctx, store services.Store, uid string) error {
	if _, err := store.GetUser(c.UserContext(), uid); err != nil {
		return respondError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// closed on server shutdown only
	shutdown := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// only the latest record matters
		updates := make(chan models.User, 1)
		unsubscribe, err := store.SubscribeUser(ctx, uid, func(u models.User) {
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- u:
			default:
			}
		})
		if err != nil {
			slog.Error("user stream subscribe failed", "user_id", uid, "error", err)
			return
		}
		defer unsubscribe()

		pumpUserEvents(w, updates, shutdown, streamKeepAlive)
	})
	return nil
}

// pumpUserEvents writes updates and keep-alive comments until a write or
// flush fails or shutdown closes.
func pumpUserEvents(w *bufio.Writer, updates <-chan models.User, shutdown <-chan struct{}, keepAliveEvery time.Duration) {
	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case u := <-updates:
			if err := writeUserEvent(w, u); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := w.WriteString(":\n\n"); err != nil {
				return
			}
		case <-shutdown:
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}
