package httpbody

import (
	"reflect"
	"testing"
)

func TestKVSetReplacesFirstAndDropsRest(t *testing.T) {
	var kvs []headerKV
	kvs = appendKV(kvs, "a", "1")
	kvs = appendKV(kvs, "b", "2")
	kvs = appendKV(kvs, "a", "3")
	kvs = appendKV(kvs, "c", "4")

	kvs = setKV(kvs, "a", "x")

	expected := []headerKV{{"a", "x"}, {"b", "2"}, {"c", "4"}}
	if !reflect.DeepEqual(kvs, expected) {
		t.Fatalf("Unexpected kvs %v. Expected %v", kvs, expected)
	}
}

func TestKVSetAppendsMissing(t *testing.T) {
	var kvs []headerKV
	kvs = setKV(kvs, "a", "1")
	if len(kvs) != 1 || kvs[0].name != "a" || kvs[0].value != "1" {
		t.Fatalf("Unexpected kvs %v", kvs)
	}
}

func TestKVDelRemovesAllPreservingOrder(t *testing.T) {
	var kvs []headerKV
	kvs = appendKV(kvs, "a", "1")
	kvs = appendKV(kvs, "b", "2")
	kvs = appendKV(kvs, "a", "3")
	kvs = appendKV(kvs, "c", "4")

	kvs = delKV(kvs, "a")

	expected := []headerKV{{"b", "2"}, {"c", "4"}}
	if !reflect.DeepEqual(kvs, expected) {
		t.Fatalf("Unexpected kvs %v. Expected %v", kvs, expected)
	}
}

func TestKVPeekAllInsertionOrder(t *testing.T) {
	var kvs []headerKV
	kvs = appendKV(kvs, "a", "1")
	kvs = appendKV(kvs, "b", "2")
	kvs = appendKV(kvs, "a", "3")

	values := peekAllKV(kvs, "a")
	expected := []string{"1", "3"}
	if !reflect.DeepEqual(values, expected) {
		t.Fatalf("Unexpected values %v. Expected %v", values, expected)
	}
	if peekAllKV(kvs, "missing") != nil {
		t.Fatalf("Expected nil for missing name")
	}
}

func TestKVCopy(t *testing.T) {
	var src []headerKV
	src = appendKV(src, "a", "1")
	src = appendKV(src, "b", "2")

	dst := copyKVs(nil, src)
	if !reflect.DeepEqual(dst, src) {
		t.Fatalf("Unexpected copy %v. Expected %v", dst, src)
	}

	dst = setKV(dst, "a", "changed")
	if src[0].value != "1" {
		t.Fatalf("Copy must not alias the source")
	}
}
