package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("CA_TEST_DUR", "90s")
	if got := Duration("CA_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("got %s", got)
	}
	t.Setenv("CA_TEST_DUR", "2.5")
	if got := Duration("CA_TEST_DUR", time.Second); got != 2500*time.Millisecond {
		t.Fatalf("got %s", got)
	}
	t.Setenv("CA_TEST_DUR", "soon")
	if got := Duration("CA_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("expected default, got %s", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("CA_TEST_BOOL", "yes")
	if !Bool("CA_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("CA_TEST_BOOL", "off")
	if Bool("CA_TEST_BOOL", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("CA_TEST_BOOL", "maybe")
	if !Bool("CA_TEST_BOOL", true) {
		t.Fatalf("expected default")
	}
}

func TestIntAndString(t *testing.T) {
	t.Setenv("CA_TEST_INT", "12")
	if Int("CA_TEST_INT", 1) != 12 {
		t.Fatalf("expected 12")
	}
	t.Setenv("CA_TEST_INT", "x")
	if Int("CA_TEST_INT", 1) != 1 {
		t.Fatalf("expected default")
	}
	t.Setenv("CA_TEST_STR", "  v  ")
	if String("CA_TEST_STR", "d") != "v" {
		t.Fatalf("expected trimmed value")
	}
}
