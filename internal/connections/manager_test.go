package connections

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

func TestManager(t *testing.T) {
	t.Run("basic add and remove connection", func(t *testing.T) {
		manager := NewManager(DefaultTimeouts)

		conn := &websocket.Conn{}

		client := manager.AddConnection(conn, "patient-1")
		if client.Subject() != "patient-1" {
			t.Errorf("subject = %q", client.Subject())
		}
		if got, exists := manager.GetClient(conn); !exists || got != client {
			t.Error("client not found after adding")
		}

		manager.RemoveConnection(conn)
		if _, exists := manager.GetClient(conn); exists {
			t.Error("client still exists after removal")
		}
	})

	t.Run("concurrent connection operations", func(t *testing.T) {
		manager := NewManager(DefaultTimeouts)
		concurrentOps := 100
		var wg sync.WaitGroup
		wg.Add(concurrentOps)

		connections := make([]*websocket.Conn, concurrentOps)
		for i := 0; i < concurrentOps; i++ {
			connections[i] = &websocket.Conn{}
		}

		for i := 0; i < concurrentOps; i++ {
			go func(conn *websocket.Conn) {
				defer wg.Done()
				manager.AddConnection(conn, "subject")
			}(connections[i])
		}
		wg.Wait()

		if got := manager.GetConnectionCount(); got != concurrentOps {
			t.Errorf("connection count = %d, want %d", got, concurrentOps)
		}

		for _, conn := range connections {
			manager.RemoveConnection(conn)
		}
		if got := manager.GetConnectionCount(); got != 0 {
			t.Errorf("connection count after removal = %d, want 0", got)
		}
	})
}

func TestClientSendEvent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	manager := NewManager(DefaultTimeouts)

	received := make(chan Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Errorf("read: %v", err)
			return
		}
		received <- event
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	client := manager.AddConnection(conn, "patient-1")
	if err := client.SendEvent("stream_chunk", map[string]string{"content": "Hel"}); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	event := <-received
	if event.Type != "stream_chunk" {
		t.Errorf("event type = %q", event.Type)
	}
	var payload map[string]string
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["content"] != "Hel" {
		t.Errorf("payload = %v", payload)
	}
}
