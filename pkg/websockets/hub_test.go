package websockets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_Publish(t *testing.T) {
	// Arrange
	hub := NewHub(discardLogger())
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach("local-1", conn)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	// Act
	err = hub.Publish(context.Background(), NewBalanceUpdate("usr_1", "ride", -310, 690))

	// Assert
	require.NoError(t, err)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type    MessageType          `json:"type"`
		Payload BalanceUpdatePayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, MessageTypeBalanceUpdate, got.Type)
	assert.Equal(t, int64(690), got.Payload.NewBalance)

	hub.Detach("local-1")
	assert.Equal(t, 0, hub.Len())
}
