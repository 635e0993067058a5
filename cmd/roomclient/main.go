// Command roomclient drives a running meeting-session-service through its
// HTTP API: it starts recording, simulates the page being hidden and
// restored, then ends the call and reports the save outcome.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	base := flag.String("addr", "http://localhost:8080", "service API address")
	flag.Parse()

	waitForState(*base, "CONNECTED", 10*time.Second)
	log.Println("session connected")

	post(*base, "/v1/recording/start")
	log.Println("recording started")

	// Simulate the hosting page being backgrounded and restored.
	post(*base, "/v1/session/page-event?type=hidden")
	time.Sleep(500 * time.Millisecond)
	post(*base, "/v1/session/page-event?type=visible")
	log.Println("page hidden/visible cycle injected")

	// A leave request mid-call must be denied.
	var leave struct {
		Allowed bool `json:"allowed"`
	}
	postJSON(*base, "/v1/session/leave", &leave)
	log.Printf("mid-call leave allowed=%v", leave.Allowed)

	var end struct {
		State string `json:"state"`
	}
	postJSON(*base, "/v1/session/end", &end)
	log.Printf("call ended, state=%s", end.State)

	var save struct {
		State     int    `json:"state"`
		MeetingID string `json:"meetingId"`
		Message   string `json:"message"`
	}
	get(*base, "/v1/save", &save)
	log.Printf("save state=%d meetingId=%s message=%q", save.State, save.MeetingID, save.Message)

	resp, err := http.Get(*base + "/v1/diagnostics")
	if err != nil {
		log.Fatalf("fetch diagnostics: %v", err)
	}
	defer resp.Body.Close()
	report, _ := io.ReadAll(resp.Body)
	log.Printf("diagnostics:\n%s", report)
}

func waitForState(base, want string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var status struct {
			State string `json:"state"`
		}
		get(base, "/v1/session", &status)
		if status.State == want {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	log.Fatalf("session never reached %s", want)
}

func get(base, path string, out any) {
	resp, err := http.Get(base + path)
	if err != nil {
		log.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
}

func post(base, path string) {
	resp, err := http.Post(base+path, "", nil)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		log.Fatalf("POST %s: status %d: %s", path, resp.StatusCode, body)
	}
}

func postJSON(base, path string, out any) {
	resp, err := http.Post(base+path, "", nil)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
}
