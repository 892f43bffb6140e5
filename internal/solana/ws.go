package solana

import (
	"context"
	"errors"
)

// ErrClientClosed is returned by a client closed through Close.
var ErrClientClosed = errors.New("websocket client closed")

// WSClient defines Solana WebSocket subscription interface.
// A client owns one connection; when the connection drops every
// subscription channel is closed and Err reports the cause.
type WSClient interface {
	// SubscribeLogs subscribes to program logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Err returns why the connection ended, nil while it is alive.
	Err() error

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
	// Commitment defaults to confirmed.
	Commitment string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}
