package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// wsReadLimit caps an individual log-subscription notification's size.
const wsReadLimit = 16 * 1024 * 1024

// LogsNotification is one log-subscription event: the transaction's
// signature, its log lines, and its error (nil on success).
type LogsNotification struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}

type logsSubscribeParams struct {
	Mentions []string `json:"mentions"`
}

type subscribeOpts struct {
	Commitment string `json:"commitment"`
}

type logsNotificationParams struct {
	Result struct {
		Value LogsNotification `json:"value"`
	} `json:"result"`
}

// LogSubscription is a live subscription to program log notifications.
// Call Next repeatedly until it returns an error (including context
// cancellation), then Close to release the connection.
type LogSubscription struct {
	conn *websocket.Conn
}

// SubscribeLogs dials the client's WebSocket endpoint, issues a
// logsSubscribe request mentioning programAddress at the given
// commitment level, and returns a subscription yielding notifications.
func (c *Client) SubscribeLogs(ctx context.Context, programAddress, commitment string) (*LogSubscription, error) {
	conn, _, err := websocket.Dial(ctx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: dial %s: %w", c.wsURL, err)
	}
	conn.SetReadLimit(wsReadLimit)

	req := jsonrpcRequest{
		Version: jsonrpcVersion,
		ID:      1,
		Method:  "logsSubscribe",
		Params: []interface{}{
			logsSubscribeParams{Mentions: []string{programAddress}},
			subscribeOpts{Commitment: commitment},
		},
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe request failed")
		return nil, fmt.Errorf("rpcclient: send logsSubscribe: %w", err)
	}

	// Drain the subscription-id acknowledgement before the caller starts
	// reading notifications.
	var ack jsonrpcResponse
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe ack failed")
		return nil, fmt.Errorf("rpcclient: read logsSubscribe ack: %w", err)
	}
	if ack.Error != nil {
		conn.Close(websocket.StatusInternalError, "subscribe rejected")
		return nil, ack.Error
	}

	return &LogSubscription{conn: conn}, nil
}

// Next blocks until the next notification arrives, ctx is cancelled, or the
// connection fails. Unrelated or malformed frames are skipped.
func (s *LogSubscription) Next(ctx context.Context) (LogsNotification, error) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return LogsNotification{}, fmt.Errorf("rpcclient: subscription read: %w", err)
		}

		var msg struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Method != "logsNotification" {
			continue
		}

		var params logsNotificationParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			continue
		}

		return params.Result.Value, nil
	}
}

// Close cancels the subscription and releases the underlying connection.
// No further notifications are delivered after it returns.
func (s *LogSubscription) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "unsubscribed")
}
