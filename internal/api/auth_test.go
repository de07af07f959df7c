package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewTokenVerifies(t *testing.T) {
	token, err := NewToken("s3cret", "ci", time.Minute)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}

	claims, err := verifyToken([]byte("s3cret"), "Bearer "+token)
	if err != nil {
		t.Fatalf("verifyToken failed: %v", err)
	}
	if claims.Subject != "ci" {
		t.Errorf("expected subject ci, got %s", claims.Subject)
	}

	if _, err := NewToken("", "ci", time.Minute); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestVerifyTokenRejects(t *testing.T) {
	valid, _ := NewToken("s3cret", "ci", time.Minute)
	expired, _ := NewToken("s3cret", "ci", -time.Minute)
	otherSecret, _ := NewToken("other", "ci", time.Minute)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: tokenIssuer}).
		SignedString([]byte("s3cret"))
	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("s3cret"))

	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no scheme", valid},
		{"basic scheme", "Basic " + valid},
		{"expired", "Bearer " + expired},
		{"wrong secret", "Bearer " + otherSecret},
		{"no expiry", "Bearer " + noExpiry},
		{"wrong issuer", "Bearer " + wrongIssuer},
		{"garbage", "Bearer not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := verifyToken([]byte("s3cret"), tt.header); err == nil {
				t.Error("expected token to be rejected")
			}
		})
	}
}

func TestRunEndpointsRequireToken(t *testing.T) {
	s, ts := newTestServer(t)
	s.SetAuthSecret("s3cret")

	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader(`{"preset":"quick"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}

	token, _ := NewToken("s3cret", "test", time.Minute)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/run",
		strings.NewReader(`{"preset":"quick","tasks_per_pusher":5,"task_time":"0s"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 with token, got %d", resp.StatusCode)
	}
	waitIdle(t, s)

	// Read-only endpoints stay open
	statusResp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	statusResp.Body.Close()
	if statusResp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for status, got %d", statusResp.StatusCode)
	}
}
