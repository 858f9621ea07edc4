package knowledge

import (
	"testing"

	"selfmend/internal/core/domain"
)

func TestBucketDefaultWhenNoKeys(t *testing.T) {
	proj := NewProjection([]string{"operation"}, false)
	ev := &domain.FailureEvent{Context: map[string]string{}}

	if got := proj.Bucket(ev); got != "default" {
		t.Errorf("Expected default bucket, got %q", got)
	}
}

func TestBucketSingleKey(t *testing.T) {
	proj := NewProjection([]string{"operation"}, false)
	ev := &domain.FailureEvent{Context: map[string]string{
		"operation": "fetch_page",
		"host":      "example.com",
	}}

	if got := proj.Bucket(ev); got != "operation=fetch_page" {
		t.Errorf("Unexpected bucket %q", got)
	}
}

func TestBucketKeyOrderIsDeclared(t *testing.T) {
	proj := NewProjection([]string{"tool", "operation"}, false)
	ev := &domain.FailureEvent{Context: map[string]string{
		"operation": "fetch_page",
		"tool":      "browser",
	}}

	want := "tool=browser:operation=fetch_page"
	if got := proj.Bucket(ev); got != want {
		t.Errorf("Bucket = %q, want %q", got, want)
	}
}

func TestBucketIncludesCoarseSeverity(t *testing.T) {
	proj := NewProjection([]string{"operation"}, true)

	ev := &domain.FailureEvent{
		Context:  map[string]string{"operation": "fetch_page"},
		Severity: domain.SeverityCritical,
	}
	if got := proj.Bucket(ev); got != "operation=fetch_page:sev=high" {
		t.Errorf("Unexpected bucket %q", got)
	}

	ev.Severity = domain.SeverityInfo
	if got := proj.Bucket(ev); got != "operation=fetch_page:sev=normal" {
		t.Errorf("Unexpected bucket %q", got)
	}
}

func TestBucketDeterministic(t *testing.T) {
	proj := NewProjection([]string{"operation", "host"}, true)
	ev := &domain.FailureEvent{
		Context:  map[string]string{"operation": "query", "host": "db-1"},
		Severity: domain.SeverityWarning,
	}

	first := proj.Bucket(ev)
	for i := 0; i < 20; i++ {
		if got := proj.Bucket(ev); got != first {
			t.Fatalf("Bucket changed between calls: %q vs %q", first, got)
		}
	}
}
