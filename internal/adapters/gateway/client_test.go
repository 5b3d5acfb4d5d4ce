package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ed-github1/Gestion-Terapeutica--sub001/internal/core"
)

func TestICEServers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rtc/ice-servers" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"iceServers":[
			{"urls":["stun:stun.example.org"]},
			{"urls":["turn:turn.example.org"],"username":"u","credential":"c"}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", 2*time.Second)
	servers, err := c.ICEServers(context.Background())
	if err != nil {
		t.Fatalf("ICEServers: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(servers))
	}
	if servers[1].Username != "u" || servers[1].Credential != "c" {
		t.Fatalf("turn credentials lost: %+v", servers[1])
	}
}

func TestICEServersFailureMapsToConfigUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"empty list", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true,"iceServers":[]}`))
		}},
		{"not success", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := New(srv.URL, "tok", 2*time.Second)
			if _, err := c.ICEServers(context.Background()); !errors.Is(err, core.ErrConfigUnavailable) {
				t.Fatalf("err = %v, want ErrConfigUnavailable", err)
			}
		})
	}
}

func TestJoinRoomSendsBearerCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("authorization = %q", got)
		}
		if r.Method != http.MethodPost || r.URL.Path != "/rtc/rooms/join" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"room":{"roomId":"room-9"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-123", 2*time.Second)
	roomID, err := c.JoinRoom(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if roomID != "room-9" {
		t.Fatalf("roomID = %q", roomID)
	}
}

func TestJoinRoomRejectionMapsToNotAuthorized(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"forbidden", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
		{"success false", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"error":"not on the roster"}`))
		}},
		{"missing room", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true,"room":{}}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := New(srv.URL, "tok", 2*time.Second)
			if _, err := c.JoinRoom(context.Background(), "session-1"); !errors.Is(err, core.ErrNotAuthorized) {
				t.Fatalf("err = %v, want ErrNotAuthorized", err)
			}
		})
	}
}

func TestEndRoomHitsSessionPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", 2*time.Second)
	if err := c.EndRoom(context.Background(), "session-7"); err != nil {
		t.Fatalf("EndRoom: %v", err)
	}
	if gotPath != "/rtc/rooms/session-7/end" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestRoomStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"room":{"roomId":"room-9","participantCount":2,"active":true}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", 2*time.Second)
	status, err := c.RoomStatus(context.Background(), "session-7")
	if err != nil {
		t.Fatalf("RoomStatus: %v", err)
	}
	if status.RoomID != "room-9" || status.ParticipantCount != 2 || !status.Active {
		t.Fatalf("status = %+v", status)
	}
}
