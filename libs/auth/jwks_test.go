package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type jwksServer struct {
	mu      sync.Mutex
	kids    []string
	status  int
	fetches int
	key     *rsa.PublicKey
}

func (s *jwksServer) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	doc := jwks{Keys: []jwk{{Kty: "EC", Kid: "ec-key"}}}
	for _, kid := range s.kids {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(s.key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(s.key.E)).Bytes()),
		})
	}
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *jwksServer) set(status int, kids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.kids = kids
}

func (s *jwksServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func TestJWKSClientRotationAndFallback(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	backend := &jwksServer{kids: []string{"kid-1"}, key: &key.PublicKey}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewJWKSClient(srv.URL, time.Minute)
	c.now = func() time.Time { return now }

	if _, err := c.Get("kid-1"); err != nil {
		t.Fatalf("Get kid-1: %v", err)
	}
	if _, err := c.Get("ec-key"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("non-RSA key must be skipped, got %v", err)
	}
	if backend.count() != 1 {
		t.Fatalf("unknown kid inside minRefresh must not refetch, fetches=%d", backend.count())
	}

	// rotated key is fetched early once minRefresh has passed
	backend.set(0, "kid-2")
	now = now.Add(15 * time.Second)
	if _, err := c.Get("kid-2"); err != nil {
		t.Fatalf("Get kid-2 after rotation: %v", err)
	}

	// an expired cache keeps serving known keys while the endpoint fails
	backend.set(http.StatusInternalServerError)
	now = now.Add(2 * time.Minute)
	if _, err := c.Get("kid-2"); err != nil {
		t.Fatalf("expected stale key, got %v", err)
	}
	if _, err := c.Get("kid-1"); err == nil {
		t.Fatal("expected error for a key that was rotated out")
	}
}
