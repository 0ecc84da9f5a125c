package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"reframe/internal/ffmpeg"
	"reframe/internal/logging"
	"reframe/internal/testsupport"
	"reframe/internal/transcode"
)

func startDaemon(t *testing.T, encoder ffmpeg.Client) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := New(cfg, store, encoder, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func apiURL(d *Daemon, path string) string {
	return "http://" + d.APIAddr() + path
}

func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	d := startDaemon(t, &stubEncoder{})

	resp, err := http.Get(apiURL(d, "/api/status"))
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status Status
	decodeJSON(t, resp, &status)
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.JobDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("expected populated paths, got %+v", status)
	}
}

func TestSubmitJobOverAPI(t *testing.T) {
	encoder := &stubEncoder{notifications: []ffmpeg.Notification{
		{Percent: 100, Timemark: "00:00:08", FPS: 24},
	}}
	d := startDaemon(t, encoder)

	dir := t.TempDir()
	req := ffmpeg.Request{
		InputPath:  testsupport.SampleInput(t, dir),
		OutputPath: filepath.Join(dir, "out.mkv"),
		Format:     "mkv",
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(apiURL(d, "/api/jobs"), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post job: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var submitted jobResponse
	decodeJSON(t, resp, &submitted)
	if submitted.Job == nil || submitted.Job.ID == "" {
		t.Fatal("expected a job record in the response")
	}

	final := waitTerminal(t, d.store, submitted.Job.ID)
	if final.Status != transcode.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", final.Status, final.FailureReason)
	}

	statusResp, err := http.Get(apiURL(d, "/api/jobs/"+submitted.Job.ID))
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if statusResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for job fetch, got %d", statusResp.StatusCode)
	}
	var fetched jobResponse
	decodeJSON(t, statusResp, &fetched)
	if fetched.Job.Status != transcode.StatusSucceeded {
		t.Fatalf("expected succeeded job over API, got %s", fetched.Job.Status)
	}
	if fetched.Job.Percent != 100 {
		t.Fatalf("expected 100%% progress, got %v", fetched.Job.Percent)
	}

	listResp, err := http.Get(apiURL(d, "/api/jobs"))
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	var list jobListResponse
	decodeJSON(t, listResp, &list)
	if len(list.Jobs) != 1 {
		t.Fatalf("expected one job in list, got %d", len(list.Jobs))
	}
}

func TestSubmitErrorsMapToStatuses(t *testing.T) {
	d := startDaemon(t, &stubEncoder{})

	dir := t.TempDir()
	valid := ffmpeg.Request{
		InputPath:  testsupport.SampleInput(t, dir),
		OutputPath: filepath.Join(dir, "out.mp4"),
		Format:     "mp4",
	}

	unsupported := valid
	unsupported.Format = "wmv"
	missingInput := valid
	missingInput.InputPath = filepath.Join(dir, "absent.mp4")

	cases := []struct {
		name string
		req  ffmpeg.Request
		want int
	}{
		{"unsupported format", unsupported, http.StatusUnprocessableEntity},
		{"missing input", missingInput, http.StatusBadRequest},
		{"relative output", ffmpeg.Request{InputPath: valid.InputPath, OutputPath: "out.mp4", Format: "mp4"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		body, err := json.Marshal(tc.req)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.name, err)
		}
		resp, err := http.Post(apiURL(d, "/api/jobs"), "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("%s: post: %v", tc.name, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
	}

	resp, err := http.Post(apiURL(d, "/api/jobs"), "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("post malformed body: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestCancelOverAPI(t *testing.T) {
	d := startDaemon(t, &stubEncoder{blockUntilCtx: true})

	dir := t.TempDir()
	req := ffmpeg.Request{
		InputPath:  testsupport.SampleInput(t, dir),
		OutputPath: filepath.Join(dir, "out.mp4"),
		Format:     "mp4",
	}
	record, err := d.Manager().Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := http.Post(apiURL(d, "/api/jobs/"+record.ID+"/cancel"), "application/json", nil)
	if err != nil {
		t.Fatalf("post cancel: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for cancel, got %d", resp.StatusCode)
	}

	final := waitTerminal(t, d.store, record.ID)
	if final.Status != transcode.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}
}

func TestUnknownJobEndpoints(t *testing.T) {
	d := startDaemon(t, &stubEncoder{})

	resp, err := http.Get(apiURL(d, "/api/jobs/no-such-id"))
	if err != nil {
		t.Fatalf("get unknown job: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", resp.StatusCode)
	}

	cancelResp, err := http.Post(apiURL(d, "/api/jobs/no-such-id/cancel"), "application/json", nil)
	if err != nil {
		t.Fatalf("cancel unknown job: %v", err)
	}
	io.Copy(io.Discard, cancelResp.Body)
	cancelResp.Body.Close()
	if cancelResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown cancel, got %d", cancelResp.StatusCode)
	}
}

func TestPreviewEndpointStartsServerLazily(t *testing.T) {
	d := startDaemon(t, &stubEncoder{})

	if d.PreviewServer().Addr() != "" {
		t.Fatal("preview server must stay down until first use")
	}

	path := testsupport.SampleInput(t, t.TempDir())
	body := fmt.Sprintf(`{"path":%q}`, path)
	resp, err := http.Post(apiURL(d, "/api/preview"), "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post preview: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var preview previewResponse
	decodeJSON(t, resp, &preview)
	if preview.URL == "" {
		t.Fatal("expected a preview url")
	}

	fileResp, err := http.Get(preview.URL)
	if err != nil {
		t.Fatalf("get preview url: %v", err)
	}
	data, err := io.ReadAll(fileResp.Body)
	fileResp.Body.Close()
	if err != nil {
		t.Fatalf("read preview body: %v", err)
	}
	if fileResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from preview server, got %d", fileResp.StatusCode)
	}
	if len(data) != 4096 {
		t.Fatalf("expected 4096 preview bytes, got %d", len(data))
	}
}

func TestSecondInstanceRejected(t *testing.T) {
	d := startDaemon(t, &stubEncoder{})

	cfg := testsupport.NewConfig(t)
	cfg.Paths.LogDir = filepath.Dir(d.lockPath)
	store := testsupport.MustOpenStore(t, cfg)
	second, err := New(cfg, store, &stubEncoder{}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected by the lockfile")
	}
}
