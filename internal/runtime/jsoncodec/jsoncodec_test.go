package jsoncodec

import (
	"testing"
)

type variantPayload struct {
	ID    string  `json:"id"`
	Price float64 `json:"sellingPrice"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := variantPayload{ID: "v1", Price: 19.5}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"id":"v1","sellingPrice":19.5}` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var out variantPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}
}

func TestMarshalSortsMapKeys(t *testing.T) {
	data, err := Marshal(map[string]int{"size": 2, "color": 1})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"color":1,"size":2}` {
		t.Fatalf("expected sorted keys, got %s", data)
	}
}

func TestIsNull(t *testing.T) {
	cases := map[string]bool{
		"":         true,
		"null":     true,
		"  null\n": true,
		"{}":       false,
		"[]":       false,
		`"null"`:   false,
		`{"id":1}`: false,
	}
	for in, want := range cases {
		if got := IsNull([]byte(in)); got != want {
			t.Errorf("IsNull(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestUnmarshalOptional(t *testing.T) {
	out := variantPayload{ID: "untouched"}
	found, err := UnmarshalOptional([]byte(" null "), &out)
	if err != nil || found || out.ID != "untouched" {
		t.Fatalf("null must report not found and keep v, got %v %v %#v", found, err, out)
	}

	found, err = UnmarshalOptional([]byte(`{"id":"v2"}`), &out)
	if err != nil || !found || out.ID != "v2" {
		t.Fatalf("unexpected result %v %v %#v", found, err, out)
	}

	if _, err := UnmarshalOptional([]byte(`{"id":`), &out); err == nil {
		t.Fatal("expected malformed input to fail")
	}
}
