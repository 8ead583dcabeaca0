package relay

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// wsConn maps relay frames onto WebSocket messages. WebSocket already
// preserves message boundaries, so the length prefix is unnecessary here;
// the JSON bodies on the wire are identical to the socket transport's.
type wsConn struct {
	conn *websocket.Conn
}

// WebSocketDialer connects to a relay that speaks WebSocket, e.g. an
// extension background script exposing ws://127.0.0.1:8765/relay.
func WebSocketDialer(url string) Dialer {
	return func(ctx context.Context) (FrameConn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial relay websocket %s: %w", url, err)
		}
		return &wsConn{conn: conn}, nil
	}
}

func (w *wsConn) ReadFrame() ([]byte, error) {
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) WriteFrame(payload []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
