package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ecg-quality/internal/config"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Upload.TempDir = t.TempDir()
	a := NewApp(cfg, zerolog.Nop())
	var out bytes.Buffer
	a.Out = &out
	return a, &out
}

func writeRecording(t *testing.T, a *App, dir, name string, opts SimulateOptions) string {
	t.Helper()
	opts.Out = filepath.Join(dir, name)
	if err := a.Simulate(context.Background(), opts); err != nil {
		t.Fatalf("simulate %s: %v", name, err)
	}
	return opts.Out
}

func TestSimulateThenAnalyze(t *testing.T) {
	a, out := newTestApp(t)
	dir := t.TempDir()
	path := writeRecording(t, a, dir, "rec.txt", SimulateOptions{Duration: 25, Noise: 0.01})

	if err := a.Analyze(context.Background(), AnalyzeOptions{File: path}); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	windows := payload["quality_assessment"].(map[string]any)["windows"].([]any)
	if len(windows) != 3 {
		t.Fatalf("windows = %d, want 3", len(windows))
	}
	last := windows[2].(map[string]any)
	if last["start_time"].(float64) != 20 || last["end_time"].(float64) != 25 {
		t.Fatalf("last window = %v", last)
	}
}

func TestAnalyzeWritesOutputFile(t *testing.T) {
	a, out := newTestApp(t)
	dir := t.TempDir()
	path := writeRecording(t, a, dir, "rec.txt", SimulateOptions{Noise: 0.01})
	target := filepath.Join(dir, "reports", "rec.json")

	err := a.Analyze(context.Background(), AnalyzeOptions{File: path, Output: target, Pretty: true})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.Len() != 0 {
		t.Fatal("nothing should be written to Out when --output is set")
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(data, []byte("\n  \"metadata\"")) {
		t.Fatal("pretty report should be indented")
	}
}

func TestAnalyzeUnknownChannel(t *testing.T) {
	a, _ := newTestApp(t)
	path := writeRecording(t, a, t.TempDir(), "rec.txt", SimulateOptions{Noise: 0.01})

	opts := AnalyzeOptions{File: path}
	opts.Params.Channel = "CH12"
	err := a.Analyze(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "CH12") {
		t.Fatalf("expected channel error, got %v", err)
	}
}

func TestShowPrintsTableAndSummary(t *testing.T) {
	a, out := newTestApp(t)
	path := writeRecording(t, a, t.TempDir(), "rec.txt", SimulateOptions{
		Noise:         0.01,
		ArtifactStart: 10,
		ArtifactEnd:   20,
		Flat:          true,
	})

	if err := a.Show(context.Background(), ShowOptions{File: path}); err != nil {
		t.Fatalf("show: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Window", "REJECTED", "Overall:", "Best segment:", "Poor quality:"} {
		if !strings.Contains(text, want) {
			t.Fatalf("show output missing %q:\n%s", want, text)
		}
	}
}

func TestExportWritesFiles(t *testing.T) {
	a, _ := newTestApp(t)
	dir := t.TempDir()
	path := writeRecording(t, a, dir, "rec.txt", SimulateOptions{Duration: 20, Noise: 0.01})

	opts := ExportOptions{
		File:           path,
		CSVPath:        filepath.Join(dir, "out", "signal.csv"),
		WindowsCSVPath: filepath.Join(dir, "out", "windows.csv"),
		PNGPath:        filepath.Join(dir, "out", "ecg.png"),
		HRPNGPath:      filepath.Join(dir, "out", "hr.png"),
		MaxPoints:      500,
	}
	if err := a.Export(context.Background(), opts); err != nil {
		t.Fatalf("export: %v", err)
	}

	signalCSV, err := os.ReadFile(opts.CSVPath)
	if err != nil {
		t.Fatalf("read signal csv: %v", err)
	}
	if lines := strings.Count(string(signalCSV), "\n"); lines != 501 {
		t.Fatalf("signal csv lines = %d, want header + 500", lines)
	}

	windowsCSV, err := os.ReadFile(opts.WindowsCSVPath)
	if err != nil {
		t.Fatalf("read windows csv: %v", err)
	}
	if lines := strings.Count(string(windowsCSV), "\n"); lines != 3 {
		t.Fatalf("windows csv lines = %d, want header + 2", lines)
	}

	for _, png := range []string{opts.PNGPath, opts.HRPNGPath} {
		info, err := os.Stat(png)
		if err != nil || info.Size() == 0 {
			t.Fatalf("png %s not written: %v", png, err)
		}
	}
}

func TestExportRequiresTarget(t *testing.T) {
	a, _ := newTestApp(t)
	if err := a.Export(context.Background(), ExportOptions{File: "x.txt"}); err == nil {
		t.Fatal("expected error without any output path")
	}
}

func TestDownsampleKeepsEndpoints(t *testing.T) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}
	got := downsample(items, 10)
	if len(got) != 10 || got[0] != 0 || got[9] != 999 {
		t.Fatalf("downsample = %v", got)
	}
	if short := downsample(items[:5], 10); len(short) != 5 {
		t.Fatalf("short input should be returned as is, got %d", len(short))
	}
}

func TestBatchReportsEveryFile(t *testing.T) {
	a, out := newTestApp(t)
	dir := t.TempDir()
	files := []string{
		writeRecording(t, a, dir, "a.txt", SimulateOptions{Noise: 0.01}),
		filepath.Join(dir, "missing.txt"),
		writeRecording(t, a, dir, "b.txt", SimulateOptions{Noise: 0.01, Seed: 7}),
	}

	err := a.Batch(context.Background(), BatchOptions{Files: files, Workers: 2})
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Fatalf("expected one failure, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("batch output lines = %d:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[1], "a.txt") || !strings.HasPrefix(lines[3], "b.txt") {
		t.Fatalf("output should follow input order:\n%s", out.String())
	}
	if !strings.Contains(lines[2], "ERROR") {
		t.Fatalf("missing file should be reported as ERROR: %s", lines[2])
	}
}

func TestSimulateRejectsInvertedArtifact(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.Simulate(context.Background(), SimulateOptions{ArtifactStart: 5, ArtifactEnd: 2})
	if err == nil {
		t.Fatal("expected error for inverted artifact interval")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	a, _ := newTestApp(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, listener) }()

	url := fmt.Sprintf("http://%s/api/health", listener.Addr())
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWatchProcessesInbox(t *testing.T) {
	a, _ := newTestApp(t)
	a.Config.Watch.Settle = 0
	inbox, outbox := t.TempDir(), t.TempDir()
	writeRecording(t, a, inbox, "rec.txt", SimulateOptions{Duration: 20, Noise: 0.01})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, WatchOptions{Dir: inbox, OutputDir: outbox, Interval: 50 * time.Millisecond})
	}()

	target := filepath.Join(outbox, "rec.report.json")
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(target); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("report was not written")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
