package jsonutil

import (
	"reflect"
	"strings"
	"testing"
)

func TestObjectKeys(t *testing.T) {
	keys, err := ObjectKeys([]byte(`{"detail":{},"source":"aws.ecs","detail-type":"ECS Task State Change"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"detail", "detail-type", "source"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("expected %v, got %v", want, keys)
	}
}

func TestObjectKeys_Rejects(t *testing.T) {
	for _, input := range []string{`not json`, `[1,2]`, `"str"`, `null`, ``, `{"a":`} {
		if _, err := ObjectKeys([]byte(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 10); got != "short" {
		t.Errorf("expected untouched string, got %q", got)
	}
	if got := Preview("abcdefghij", 4); got != "abcd..." {
		t.Errorf("expected abcd..., got %q", got)
	}
	// "é" is two bytes; cutting at 2 would split it.
	got := Preview("aé-tail", 2)
	if got != "a..." {
		t.Errorf("expected a..., got %q", got)
	}
	if !strings.HasSuffix(Preview(strings.Repeat("x", 300), 200), "...") {
		t.Error("expected ellipsis on long input")
	}
}
