package restrict

import (
	"sync"
	"testing"
)

func TestFieldSetStartsEmpty(t *testing.T) {
	fs := NewFieldSet()
	if fs.Len() != 0 {
		t.Errorf("expected empty set, got %d fields", fs.Len())
	}
	if fs.Allowed("title") {
		t.Error("expected nothing allowed before any fill")
	}
}

func TestFieldSetAccumulates(t *testing.T) {
	fs := NewFieldSet()
	fs.Allow("title", "body")
	fs.Allow("body", "author")

	if !fs.Allowed("title") || !fs.Allowed("body") || !fs.Allowed("author") {
		t.Errorf("expected title/body/author allowed, got %v", fs.Fields())
	}
	want := []string{"author", "body", "title"}
	got := fs.Fields()
	if len(got) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected field %q at %d, got %q", want[i], i, got[i])
		}
	}
}

func TestFieldSetConcurrentAllow(t *testing.T) {
	fs := NewFieldSet()
	fields := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for _, name := range fields {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			fs.Allow(n)
		}(name)
	}
	wg.Wait()

	if fs.Len() != len(fields) {
		t.Errorf("expected %d fields after concurrent fills, got %d", len(fields), fs.Len())
	}
	for _, name := range fields {
		if !fs.Allowed(name) {
			t.Errorf("expected %q allowed", name)
		}
	}
}

func TestFieldsByIDStartsEmpty(t *testing.T) {
	fb := NewFieldsByID()
	if fb.Allowed("doc-1", "title") {
		t.Error("expected nothing allowed before any fill")
	}
	if len(fb.IDs()) != 0 {
		t.Errorf("expected no ids, got %v", fb.IDs())
	}
}

func TestFieldsByIDAccumulatesPerRecord(t *testing.T) {
	fb := NewFieldsByID()
	fb.Allow("doc-1", "title")
	fb.Allow("doc-1", "body")
	fb.Allow("doc-2", "title")

	if !fb.Allowed("doc-1", "body") {
		t.Error("expected doc-1 body allowed")
	}
	if fb.Allowed("doc-2", "body") {
		t.Error("expected doc-2 body not allowed")
	}
	ids := fb.IDs()
	if len(ids) != 2 || ids[0] != "doc-1" || ids[1] != "doc-2" {
		t.Errorf("expected [doc-1 doc-2], got %v", ids)
	}
	got := fb.FieldsFor("doc-1")
	if len(got) != 2 || got[0] != "body" || got[1] != "title" {
		t.Errorf("expected doc-1 fields [body title], got %v", got)
	}
	if n := len(fb.FieldsFor("doc-9")); n != 0 {
		t.Errorf("expected no fields for unknown record, got %d", n)
	}
}

func TestFieldsByIDConcurrentAllow(t *testing.T) {
	fb := NewFieldsByID()
	var wg sync.WaitGroup
	for _, id := range []string{"r1", "r2"} {
		for _, field := range []string{"a", "b", "c", "d"} {
			wg.Add(1)
			go func(id, field string) {
				defer wg.Done()
				fb.Allow(id, field)
			}(id, field)
		}
	}
	wg.Wait()

	for _, id := range []string{"r1", "r2"} {
		for _, field := range []string{"a", "b", "c", "d"} {
			if !fb.Allowed(id, field) {
				t.Errorf("expected %s.%s allowed after concurrent fills", id, field)
			}
		}
	}
}

func TestSetReport(t *testing.T) {
	fs := NewFieldSet()
	fs.Allow("title", "body")
	fb := NewFieldsByID()
	fb.Allow("doc-1", "title")

	set := Set{"fields": fs, "records": fb, "opaque": struct{}{}}
	report := set.Report()

	fields, ok := report["fields"].([]string)
	if !ok || len(fields) != 2 || fields[0] != "body" || fields[1] != "title" {
		t.Errorf("expected sorted field list, got %v", report["fields"])
	}
	records, ok := report["records"].(map[string][]string)
	if !ok || len(records["doc-1"]) != 1 || records["doc-1"][0] != "title" {
		t.Errorf("expected per-record fields, got %v", report["records"])
	}
	if _, present := report["opaque"]; present {
		t.Error("expected accumulator without Report method to be omitted")
	}

	if got := (Set{}).Report(); got != nil {
		t.Errorf("expected nil report for empty set, got %v", got)
	}
}
