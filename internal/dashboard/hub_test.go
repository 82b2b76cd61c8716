package dashboard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stockpulse/paper-engine/internal/dashboard"
)

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub := dashboard.NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	update := dashboard.AccountUpdate{
		Type:    "account_updated",
		UserID:  "user1",
		Balance: "8500",
		Value:   "2000",
		Symbol:  "AAPL",
		Action:  "Buy",
	}

	// The register handoff races the broadcast; give the hub a beat.
	time.Sleep(100 * time.Millisecond)
	hub.Broadcast(update)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("no broadcast received: %v", err)
	}
	var got dashboard.AccountUpdate
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Type != "account_updated" || got.UserID != "user1" || got.Balance != "8500" {
		t.Errorf("update = %+v", got)
	}
	if got.Symbol != "AAPL" || got.Action != "Buy" {
		t.Errorf("update = %+v", got)
	}
}
