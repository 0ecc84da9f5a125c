package main

import (
	"path/filepath"
	"strings"
	"testing"

	"reframe/internal/queue"
	"reframe/internal/transcode"
)

func TestRenderJobsTable(t *testing.T) {
	jobs := []*queue.Record{
		{
			ID:        "f2b0c2d4-aaaa-bbbb-cccc-000000000001",
			Status:    transcode.StatusRunning,
			Format:    "mkv",
			Percent:   42.6,
			InputPath: "/media/source/clip.mov",
		},
	}

	rendered := renderJobsTable(jobs)
	for _, want := range []string{"f2b0c2d4", "Running", "mkv", "43%", "clip.mov"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("table missing %q:\n%s", want, rendered)
		}
	}
}

func TestResolveOutputExplicitPath(t *testing.T) {
	ctx := newCommandContext(nil, nil)

	got, err := resolveOutput(ctx, "/media/in.mov", "out/result.mkv", "mkv")
	if err != nil {
		t.Fatalf("resolveOutput: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Fatalf("expected absolute output path, got %q", got)
	}
	if filepath.Base(got) != "result.mkv" {
		t.Fatalf("unexpected output name %q", got)
	}
}
