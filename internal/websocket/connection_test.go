package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	teacherIdentity = types.Identity{UserID: "jack", Role: types.RoleTeacher}
	studentIdentity = types.Identity{UserID: "amy", Role: types.RoleStudent}
)

func TestConnection_InterfaceCompliance(t *testing.T) {
	var _ interfaces.Connection = &Connection{}
}

func TestConnection_NewConnectionInitialization(t *testing.T) {
	conn := NewConnection(createTestWebSocketConnection(t), studentIdentity, 0)
	defer conn.Close()

	if cap(conn.writeCh) != 100 {
		t.Errorf("Expected write channel buffer of 100, got %d", cap(conn.writeCh))
	}
	if conn.writeTimeout != 5*time.Second {
		t.Errorf("Expected default write timeout, got %v", conn.writeTimeout)
	}
	if conn.Identity() != studentIdentity {
		t.Errorf("Expected identity %+v, got %+v", studentIdentity, conn.Identity())
	}
	if conn.UserID() != "amy" {
		t.Errorf("Expected user amy, got %s", conn.UserID())
	}
	if conn.ID() == "" {
		t.Error("Connection ID should be set")
	}
}

func TestConnection_IDsAreUnique(t *testing.T) {
	a := NewConnection(createTestWebSocketConnection(t), studentIdentity, 0)
	defer a.Close()
	b := NewConnection(createTestWebSocketConnection(t), studentIdentity, 0)
	defer b.Close()

	if a.ID() == b.ID() {
		t.Errorf("Expected distinct IDs, both were %s", a.ID())
	}
}

func TestConnection_WriteJSONDelivers(t *testing.T) {
	received := make(chan string, 1)
	client := createEchoTargetConnection(t, received)

	conn := NewConnection(client, teacherIdentity, time.Second)
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"event": "PING"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg != `{"event":"PING"}` {
			t.Errorf("Unexpected payload %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestConnection_WriteJSONInvalidData(t *testing.T) {
	conn := NewConnection(createTestWebSocketConnection(t), teacherIdentity, 0)
	defer conn.Close()

	err := conn.WriteJSON(make(chan int))
	if !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("Expected ErrInvalidJSON, got %v", err)
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	conn := NewConnection(createTestWebSocketConnection(t), teacherIdentity, 0)

	if err := conn.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Done should be closed after Close")
	}
}

func TestConnection_WriteAfterClose(t *testing.T) {
	conn := NewConnection(createTestWebSocketConnection(t), teacherIdentity, 0)
	_ = conn.Close()

	err := conn.WriteJSON(map[string]string{"event": "late"})
	if !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
	if !errors.Is(err, interfaces.ErrFailed) {
		t.Errorf("Expected closed error to classify as failed, got %v", err)
	}
}

func TestConnection_ConcurrentWrites(t *testing.T) {
	conn := NewConnection(createTestWebSocketConnection(t), teacherIdentity, 0)
	defer conn.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := conn.WriteJSON(map[string]int{"n": n}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent write failed: %v", err)
	}
}

func TestConnection_ConcurrentWriteAndClose(t *testing.T) {
	conn := NewConnection(createTestWebSocketConnection(t), teacherIdentity, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.WriteJSON(map[string]string{"event": "x"})
		}()
	}
	_ = conn.Close()
	wg.Wait()
}

// createTestWebSocketConnection dials a server that reads and discards frames.
func createTestWebSocketConnection(t *testing.T) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return dial(t, "ws"+strings.TrimPrefix(server.URL, "http"))
}

// createEchoTargetConnection dials a server that reports each received frame.
func createEchoTargetConnection(t *testing.T, received chan<- string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
		}
	}))
	t.Cleanup(server.Close)

	return dial(t, "ws"+strings.TrimPrefix(server.URL, "http"))
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
