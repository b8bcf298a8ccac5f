package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
)

const maxReconnectDelay = 5 * time.Second

// sseMessage is one dispatched server-sent event
type sseMessage struct {
	event string
	data  string
}

// sseReader splits a text/event-stream body into messages
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r *http.Response) *sseReader {
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &sseReader{scanner: scanner}
}

// Next returns the next message, or the error that ended the stream
func (r *sseReader) Next() (sseMessage, error) {
	var (
		msg  sseMessage
		data []string
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if msg.event == "" && len(data) == 0 {
				continue
			}
			msg.data = strings.Join(data, "\n")
			return msg, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			msg.event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return sseMessage{}, err
	}
	return sseMessage{}, errStreamClosed
}

var errStreamClosed = errors.New(errors.KindNetwork, "realtime stream closed")

// Subscribe opens an event stream for channel. It returns once the server has
// confirmed the subscription; afterwards the stream is re-established with a
// backoff whenever it drops, until the returned function is called or ctx is
// done. Each successful reconnect is reported to fn as an EventResync.
func (c *Client) Subscribe(ctx context.Context, channel string, fn func(backend.Event)) (backend.Unsubscribe, error) {
	sctx, cancel := context.WithCancel(ctx)

	reader, resp, err := c.openStream(sctx, channel)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		delay := c.delay
		for {
			c.consume(sctx, reader, fn)
			resp.Body.Close()
			if sctx.Err() != nil {
				return
			}
			logger.Warn("Realtime stream dropped, reconnecting", "channel", channel, "delay", delay)

			for {
				if sleep(sctx, delay) != nil {
					return
				}
				delay = min(delay*2, maxReconnectDelay)
				reader, resp, err = c.openStream(sctx, channel)
				if err == nil {
					delay = c.delay
					break
				}
				if sctx.Err() != nil {
					return
				}
				logger.Warn("Realtime reconnect failed", "channel", channel, "error", err)
			}
			logger.Info("Realtime stream re-established", "channel", channel)
			fn(backend.ResyncEvent(channel, time.Now().UTC()))
		}
	}()

	return backend.Unsubscribe(cancel), nil
}

func (c *Client) openStream(ctx context.Context, channel string) (*sseReader, *http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/realtime", url.Values{"channels": {channel}}, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(errors.KindNetwork, err, "failed to open realtime stream")
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, nil, responseError(resp)
	}

	reader := newSSEReader(resp)
	msg, err := reader.Next()
	if err != nil || msg.event != "ready" {
		resp.Body.Close()
		if err == nil {
			err = errors.Newf(errors.KindUnknown, "unexpected realtime message %q", msg.event)
		}
		return nil, nil, errors.Wrap(errors.KindNetwork, err, "realtime stream not confirmed")
	}
	return reader, resp, nil
}

func (c *Client) consume(ctx context.Context, reader *sseReader, fn func(backend.Event)) {
	for {
		msg, err := reader.Next()
		if err != nil {
			return
		}
		if msg.event != "event" {
			continue
		}
		var ev backend.Event
		if err := json.Unmarshal([]byte(msg.data), &ev); err != nil {
			logger.Warn("Dropping malformed realtime event", "error", err)
			continue
		}
		if ctx.Err() != nil {
			return
		}
		fn(ev)
	}
}
