package httprange

import "testing"

const testSize = 1000

func resolve(t *testing.T, header, ifRange string) Plan {
	t.Helper()
	return Resolve(header, ifRange, Resource{
		ETag:         `"etag-1"`,
		LastModified: "Wed, 21 Oct 2015 07:28:00 GMT",
		Size:         testSize,
	})
}

func TestResolveNoHeader(t *testing.T) {
	t.Parallel()

	plan := resolve(t, "", "")
	if plan.Kind != FullContent {
		t.Fatalf("expected full content, got %s", plan.Kind)
	}
	if plan.Size != testSize {
		t.Fatalf("expected size %d got %d", testSize, plan.Size)
	}
}

func TestResolveMalformedHeaders(t *testing.T) {
	t.Parallel()

	cases := []string{
		"items=0-99",
		"bytes=abc-def",
		"bytes=0-9-9",
		"bytes=",
		"bytes=10",
	}
	for _, header := range cases {
		if plan := resolve(t, header, ""); plan.Kind != FullContent {
			t.Fatalf("header %q: expected full content, got %s", header, plan.Kind)
		}
	}
}

func TestResolveClosedRange(t *testing.T) {
	t.Parallel()

	plan := resolve(t, "bytes=0-99", "")
	if plan.Kind != PartialContent {
		t.Fatalf("expected partial content, got %s", plan.Kind)
	}
	if plan.Start != 0 || plan.End != 99 {
		t.Fatalf("unexpected window %d-%d", plan.Start, plan.End)
	}
	if plan.Length() != 100 {
		t.Fatalf("expected length 100 got %d", plan.Length())
	}
	if got := plan.ContentRange(); got != "bytes 0-99/1000" {
		t.Fatalf("unexpected content range %q", got)
	}
}

func TestResolveSuffixRange(t *testing.T) {
	t.Parallel()

	plan := resolve(t, "bytes=-100", "")
	if plan.Kind != PartialContent {
		t.Fatalf("expected partial content, got %s", plan.Kind)
	}
	if plan.Start != 900 || plan.End != 999 {
		t.Fatalf("unexpected window %d-%d", plan.Start, plan.End)
	}
	if got := plan.ContentRange(); got != "bytes 900-999/1000" {
		t.Fatalf("unexpected content range %q", got)
	}
}

func TestResolveSuffixLongerThanFile(t *testing.T) {
	t.Parallel()

	plan := resolve(t, "bytes=-5000", "")
	// Covers the whole file, so it degrades to a plain 200.
	if plan.Kind != FullContent {
		t.Fatalf("expected full content, got %s", plan.Kind)
	}
}

func TestResolveOpenEndedRange(t *testing.T) {
	t.Parallel()

	plan := resolve(t, "bytes=500-", "")
	if plan.Kind != PartialContent {
		t.Fatalf("expected partial content, got %s", plan.Kind)
	}
	if plan.Start != 500 || plan.End != 999 {
		t.Fatalf("unexpected window %d-%d", plan.Start, plan.End)
	}
}

func TestResolveEndClamped(t *testing.T) {
	t.Parallel()

	plan := resolve(t, "bytes=500-9999", "")
	if plan.Kind != PartialContent {
		t.Fatalf("expected partial content, got %s", plan.Kind)
	}
	if plan.End != 999 {
		t.Fatalf("expected end clamped to 999, got %d", plan.End)
	}
}

func TestResolveWholeFileDegradesToFull(t *testing.T) {
	t.Parallel()

	for _, header := range []string{"bytes=0-", "bytes=0-999", "bytes=0-2"} {
		if plan := resolve(t, header, ""); plan.Kind != FullContent {
			t.Fatalf("header %q: expected full content, got %s", header, plan.Kind)
		}
	}
}

func TestResolveSniffRangeDegradesToFull(t *testing.T) {
	t.Parallel()

	// Any range ending at offset 2 is a playback sniff, regardless of
	// where it starts.
	for _, header := range []string{"bytes=0-2", "bytes=1-2", "bytes=2-2"} {
		if plan := resolve(t, header, ""); plan.Kind != FullContent {
			t.Fatalf("header %q: expected full content, got %s", header, plan.Kind)
		}
	}
	if plan := resolve(t, "bytes=1-3", ""); plan.Kind != PartialContent {
		t.Fatalf("expected partial content for bytes=1-3, got %s", plan.Kind)
	}
}

func TestResolveMultiRange(t *testing.T) {
	t.Parallel()

	plan := resolve(t, "bytes=0-999,500-600", "")
	if plan.Kind != MultiRangeUnsupported {
		t.Fatalf("expected multi range unsupported, got %s", plan.Kind)
	}
}

func TestResolveStartBeyondSize(t *testing.T) {
	t.Parallel()

	for _, header := range []string{"bytes=2000-", "bytes=1000-1200", "bytes=-0"} {
		if plan := resolve(t, header, ""); plan.Kind != Unsatisfiable {
			t.Fatalf("header %q: expected unsatisfiable, got %s", header, plan.Kind)
		}
	}
}

func TestResolveIfRange(t *testing.T) {
	t.Parallel()

	// Matching either validator keeps the partial plan.
	if plan := resolve(t, "bytes=0-99", `"etag-1"`); plan.Kind != PartialContent {
		t.Fatalf("matching etag: expected partial, got %s", plan.Kind)
	}
	if plan := resolve(t, "bytes=0-99", "Wed, 21 Oct 2015 07:28:00 GMT"); plan.Kind != PartialContent {
		t.Fatalf("matching last-modified: expected partial, got %s", plan.Kind)
	}
	// A stale validator downgrades to a full response.
	if plan := resolve(t, "bytes=0-99", `"etag-0"`); plan.Kind != FullContent {
		t.Fatalf("stale validator: expected full, got %s", plan.Kind)
	}
}

func TestResolveReversedRange(t *testing.T) {
	t.Parallel()

	if plan := resolve(t, "bytes=500-100", ""); plan.Kind != FullContent {
		t.Fatalf("expected full content for reversed range, got %s", plan.Kind)
	}
}
