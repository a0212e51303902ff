package http1

import (
	"reflect"
	"testing"
)

func TestDictFindIsCaseInsensitive(t *testing.T) {
	var d Dict
	d.Add("Content-Type", "text/html")
	for _, key := range []string{"Content-Type", "content-type", "CONTENT-TYPE", "cOnTeNt-TyPe"} {
		if got := d.Find(key); got != "text/html" {
			t.Errorf("Find(%q) = %q, want %q", key, got, "text/html")
		}
	}
	if got := d.Find("Missing"); got != "" {
		t.Errorf("Find(Missing) = %q, want empty", got)
	}
}

func TestDictFindReturnsFirstInserted(t *testing.T) {
	var d Dict
	d.Add("Accept", "text/html")
	d.Add("accept", "application/json")
	if got := d.Find("ACCEPT"); got != "text/html" {
		t.Errorf("Find = %q, want first-inserted %q", got, "text/html")
	}
}

func TestDictValuesPreserveInsertionOrder(t *testing.T) {
	var d Dict
	d.Add("Set-Cookie", "a=1")
	d.Add("set-cookie", "b=2")
	d.Add("SET-COOKIE", "c=3")
	want := []string{"a=1", "b=2", "c=3"}
	if got := d.Values("Set-Cookie"); !reflect.DeepEqual(got, want) {
		t.Errorf("Values = %v, want %v", got, want)
	}
}

func TestDictChangeLeavesSingleEntry(t *testing.T) {
	var d Dict
	d.Add("Connection", "keep-alive")
	d.Add("connection", "upgrade")
	d.Change("CONNECTION", "close")
	if got := d.Values("connection"); len(got) != 1 || got[0] != "close" {
		t.Errorf("Values after Change = %v, want [close]", got)
	}
	// Change on an absent key adds it
	d.Change("Host", "example.com")
	if got := d.Find("host"); got != "example.com" {
		t.Errorf("Find(host) = %q, want %q", got, "example.com")
	}
}

func TestDictDeleteRemovesAllValues(t *testing.T) {
	var d Dict
	d.Add("X-Tag", "1")
	d.Add("x-tag", "2")
	d.Add("Other", "keep")
	d.Delete("X-TAG")
	if d.Has("x-tag") {
		t.Error("Has(x-tag) = true after Delete")
	}
	if !d.Has("Other") {
		t.Error("Has(Other) = false, unrelated key was deleted")
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestDictVisitAllStopsEarly(t *testing.T) {
	var d Dict
	d.Add("a", "1")
	d.Add("b", "2")
	d.Add("c", "3")
	seen := 0
	d.VisitAll(func(key, value string) bool {
		seen++
		return seen < 2
	})
	if seen != 2 {
		t.Errorf("visited %d entries, want 2", seen)
	}
}

func TestDictClear(t *testing.T) {
	var d Dict
	d.Add("a", "1")
	d.Clear()
	if d.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", d.Len())
	}
}
