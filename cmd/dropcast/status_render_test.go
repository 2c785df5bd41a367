package main

import (
	"strings"
	"testing"

	"dropcast/internal/api"
)

func TestFormatSeconds(t *testing.T) {
	cases := map[int64]string{
		0:    "now",
		-5:   "now",
		42:   "42s",
		61:   "1m01s",
		3723: "1h02m03s",
	}
	for in, want := range cases {
		if got := formatSeconds(in); got != want {
			t.Errorf("formatSeconds(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestPublishingLinesHighlightStoppedLane(t *testing.T) {
	lines := publishingLines(api.WorkflowStatus{
		Provider:     "mastodon",
		PublishState: "stopped",
		Queue: api.QueueStatus{
			Length: 3,
			Freeze: &api.FreezeStatus{Reason: "rate limited", RemainingSeconds: 90},
		},
		Lanes: []api.LaneStatus{
			{Name: "ingest"},
			{Name: "publish", Stopped: true, StopCause: "login rejected"},
		},
	}, false)
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"not logged in", "3 waiting", "rate limited (1m30s left)", "[ERROR] Stopped: login rejected"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "Lane ingest") {
		t.Fatal("running lanes should not be listed")
	}
}

func TestRenderTableTruncatesLongCells(t *testing.T) {
	long := strings.Repeat("x", maxCellWidth+10)
	out := renderTable([]string{"Name"}, [][]string{{long}}, nil)
	if strings.Contains(out, long) {
		t.Fatal("long cell should be truncated")
	}
	if !strings.Contains(out, "…") {
		t.Fatalf("expected ellipsis in:\n%s", out)
	}
}

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("FFmpeg", statusError, "ffmpeg not found on PATH", false)
	if plain != "  FFmpeg:              [ERROR] ffmpeg not found on PATH" {
		t.Fatalf("unexpected line %q", plain)
	}
	colored := renderStatusLine("Queue", statusOK, "", true)
	if !strings.HasPrefix(colored, "\x1b[32m") || !strings.HasSuffix(colored, "[OK]"+ansiReset) {
		t.Fatalf("expected green line, got %q", colored)
	}
	if label, _ := statusKind(42).style(); label != "INFO" {
		t.Fatalf("unknown kinds should render as INFO, got %s", label)
	}
}
