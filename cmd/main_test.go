package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/medicman/assist/internal/services"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	t.Setenv("OPENAI_KEY", "test-key")

	svcs, err := services.InitializeServices(context.Background())
	if err != nil {
		t.Fatalf("InitializeServices: %v", err)
	}
	t.Cleanup(svcs.Close)

	return setupRouter(svcs)
}

func fetchToken(t *testing.T, serverURL string) string {
	t.Helper()
	resp, err := http.Post(serverURL+"/v1/auth/token", "application/json", strings.NewReader(`{
		"grant_type": "anonymous"
	}`))
	if err != nil {
		t.Fatalf("Failed to get token: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Token endpoint status = %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		t.Fatalf("Failed to decode token response: %v", err)
	}
	if tokenResp.AccessToken == "" {
		t.Fatal("Empty access token")
	}
	return tokenResp.AccessToken
}

func TestMainServer(t *testing.T) {
	server := httptest.NewServer(newTestRouter(t))
	defer server.Close()

	t.Run("auth token endpoint", func(t *testing.T) {
		fetchToken(t, server.URL)
	})

	t.Run("protected route requires token", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/v1/threads/initial")
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Expected status code %d, got %d", http.StatusUnauthorized, resp.StatusCode)
		}
	})

	t.Run("protected route with token", func(t *testing.T) {
		token := fetchToken(t, server.URL)

		req, _ := http.NewRequest("GET", server.URL+"/v1/threads/initial", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
		}

		var thread struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&thread); err != nil {
			t.Fatalf("Failed to decode thread: %v", err)
		}
		if thread.ID == "" {
			t.Error("Initial thread should have an ID")
		}
	})

	t.Run("intake init", func(t *testing.T) {
		token := fetchToken(t, server.URL)

		req, _ := http.NewRequest("POST", server.URL+"/v1/intake/init", strings.NewReader(`{
			"symptoms": "fever and cough"
		}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Errorf("Expected status code %d, got %d", http.StatusCreated, resp.StatusCode)
		}

		var sess struct {
			ID       string `json:"id"`
			Symptoms string `json:"symptoms"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
			t.Fatalf("Failed to decode session: %v", err)
		}
		if sess.ID == "" || sess.Symptoms != "fever and cough" {
			t.Errorf("Unexpected session: %+v", sess)
		}
	})

	t.Run("websocket endpoint", func(t *testing.T) {
		token := fetchToken(t, server.URL)

		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws?access_token=" + token
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect to WebSocket: %v", err)
		}
		defer conn.Close()

		// Unknown event types are answered, not fatal.
		if err := conn.WriteJSON(map[string]string{"type": "bogus"}); err != nil {
			t.Fatalf("Failed to write message: %v", err)
		}

		var event struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("Failed to read response: %v", err)
		}
		if event.Type != "error" {
			t.Errorf("Expected error event, got %q", event.Type)
		}
	})

	t.Run("websocket rejects missing token", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			t.Fatal("Dial should fail without a token")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Expected 401 handshake response, got %+v", resp)
		}
	})
}
