package llm

import (
	"errors"
	"reflect"
	"testing"
)

func TestExtractJSONObjectFenced(t *testing.T) {
	got, err := ExtractJSONObject("```json\n{\"a\":1}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"a": float64(1)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExtractJSONObjectSurroundingNoise(t *testing.T) {
	got, err := ExtractJSONObject("noise {\"a\":1} trailing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != float64(1) {
		t.Fatalf("unexpected value: %v", got["a"])
	}
}

func TestExtractJSONObjectNotJSON(t *testing.T) {
	if _, err := ExtractJSONObject("not json at all"); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestExtractJSONObjectBrokenSpan(t *testing.T) {
	if _, err := ExtractJSONObject("prefix { definitely not json }"); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}
