package clientset

import (
	"math/rand"
	"testing"

	"github.com/Janmajayamall/ulpsi/internal/ulpsi"
)

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	items := make([]ulpsi.Item, 5)
	for i := range items {
		for j := range items[i] {
			items[i][j] = byte(r.Intn(256))
		}
	}

	data := Marshal(items)
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i] != items[i] {
			t.Fatalf("item %d mismatch: got %x, want %x", i, got[i], items[i])
		}
	}
}

func TestUnmarshalEmpty(t *testing.T) {
	got, err := Unmarshal(Marshal(nil))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 items, got %d", len(got))
	}
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	data := Marshal([]ulpsi.Item{{0x01}})
	if _, err := Unmarshal(data[:len(data)-10]); err == nil {
		t.Fatal("expected an error unmarshaling a truncated client set")
	}
}
