// Package main runs a demo WebSocket client for trip events: it registers a
// driver and a vehicle, creates a trip, subscribes to its event feed, then
// starts and completes the trip to trigger events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TripID  string          `json:"tripId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func post(base, path string, body []byte, out any) error {
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	var driver struct {
		ID string `json:"id"`
	}
	if err := post(base, "/api/drivers", []byte(`{"name":"Demo Driver","licenseStatus":"Valid","dutyStatus":"Available"}`), &driver); err != nil {
		log.Fatal(err)
	}
	var vehicle struct {
		ID string `json:"id"`
	}
	if err := post(base, "/api/vehicles", []byte(`{"name":"Demo Truck","plate":"DEMO-1","maxLoad":1000}`), &vehicle); err != nil {
		log.Fatal(err)
	}
	var trip struct {
		ID string `json:"id"`
	}
	body := fmt.Sprintf(`{"driverId":%q,"vehicleId":%q,"cargoWeight":250}`, driver.ID, vehicle.ID)
	if err := post(base, "/api/trips", []byte(body), &trip); err != nil {
		log.Fatal(err)
	}
	log.Printf("Trip ID: %s", trip.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/api/ws"}
	hdr := http.Header{}
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", TripID: trip.ID}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	time.Sleep(500 * time.Millisecond)
	if err := post(base, "/api/trips/"+trip.ID+"/start", []byte("{}"), nil); err != nil {
		log.Printf("start: %v", err)
	}
	if err := post(base, "/api/trips/"+trip.ID+"/complete", []byte("{}"), nil); err != nil {
		log.Printf("complete: %v", err)
	}

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
