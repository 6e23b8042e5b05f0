package insightutil

import (
	"testing"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("http://localhost:8000")
	if err != nil {
		t.Fatal(err)
	}
	if client.URL() != "http://localhost:8000/reports" {
		t.Fatalf("unexpected report endpoint: %s", client.URL())
	}
}

func TestNewClientMissingHost(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected an error for a missing host")
	}
}
