package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("MARKBOOK_TEST_INT", "abc")
	if got := Int("MARKBOOK_TEST_INT", 100); got != 100 {
		t.Fatalf("Int: want=100 got=%d", got)
	}
	t.Setenv("MARKBOOK_TEST_INT", " 25 ")
	if got := Int("MARKBOOK_TEST_INT", 100); got != 25 {
		t.Fatalf("Int: want=25 got=%d", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("MARKBOOK_TEST_BOOL", "off")
	if Bool("MARKBOOK_TEST_BOOL", true) {
		t.Fatalf("Bool(off): want=false got=true")
	}
	t.Setenv("MARKBOOK_TEST_BOOL", "maybe")
	if !Bool("MARKBOOK_TEST_BOOL", true) {
		t.Fatalf("Bool(maybe): want default true")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("MARKBOOK_TEST_DURATION", "30")
	if got := Duration("MARKBOOK_TEST_DURATION", time.Second); got != 30*time.Second {
		t.Fatalf("Duration(30): want=30s got=%s", got)
	}
	t.Setenv("MARKBOOK_TEST_DURATION", "1m")
	if got := Duration("MARKBOOK_TEST_DURATION", time.Second); got != time.Minute {
		t.Fatalf("Duration(1m): want=1m got=%s", got)
	}
}

func TestString(t *testing.T) {
	t.Setenv("MARKBOOK_TEST_STRING", "   ")
	if got := String("MARKBOOK_TEST_STRING", "def"); got != "def" {
		t.Fatalf("String: want=def got=%q", got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("MARKBOOK_TEST_LIST", " a, ,b,")
	got := List("MARKBOOK_TEST_LIST")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List: want=[a b] got=%v", got)
	}
	t.Setenv("MARKBOOK_TEST_LIST", "")
	if got := List("MARKBOOK_TEST_LIST"); got != nil {
		t.Fatalf("List empty: want nil got=%v", got)
	}
}
