package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/shared/types"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(zap.NewNop())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return ev
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients, got %d", want, hub.ClientCount())
}

func TestBroadcastAlert(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	a := &alert.Alert{
		ID:        types.NewID(),
		PatientID: types.NewID(),
		Severity:  alert.SeverityCritical,
		Kind:      alert.KindRiskCritical,
		Message:   "sepsis risk score 85 (critical)",
		Source:    alert.SourceVitalsMonitor,
		CreatedAt: time.Now(),
	}
	hub.BroadcastAlert(a)

	ev := readEvent(t, conn)
	if ev.Type != EventAlert {
		t.Errorf("Expected event type %q, got %q", EventAlert, ev.Type)
	}
}

func TestBroadcastAcknowledgedAlert(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	now := time.Now()
	hub.BroadcastAlert(&alert.Alert{
		ID:             types.NewID(),
		PatientID:      types.NewID(),
		Severity:       alert.SeverityWarning,
		Acknowledged:   true,
		AcknowledgedBy: "Nurse Chen",
		AcknowledgedAt: &now,
		CreatedAt:      now,
	})

	ev := readEvent(t, conn)
	if ev.Type != EventAlertAcknowledged {
		t.Errorf("Expected event type %q, got %q", EventAlertAcknowledged, ev.Type)
	}
}

func TestBroadcastPatientReachesAllClients(t *testing.T) {
	hub, srv := newTestHub(t)
	conn1 := dial(t, srv)
	conn2 := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.BroadcastPatient(&patient.Patient{
		ID:        types.NewID(),
		Name:      "Maria Rodriguez",
		Room:      "302A",
		RiskScore: 85,
		RiskTier:  patient.TierCritical,
		Trend:     patient.TrendUp,
	})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		ev := readEvent(t, conn)
		if ev.Type != EventPatientUpdated {
			t.Errorf("Expected event type %q, got %q", EventPatientUpdated, ev.Type)
		}
	}
}

func TestDisconnectedClientIsRemoved(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
