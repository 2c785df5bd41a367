package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dropcast/internal/captions"
	"dropcast/internal/config"
	"dropcast/internal/fslock"
	"dropcast/internal/history"
	"dropcast/internal/media"
	"dropcast/internal/publish"
	"dropcast/internal/queue"
	"dropcast/internal/workflow"
)

var (
	pngHeader = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	mp4Header = append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), make([]byte, 64)...)
	gifHeader = append([]byte("GIF89a"), make([]byte, 64)...)
)

type copyConverter struct {
	err error
}

func (c *copyConverter) Convert(_ context.Context, src, dst string, _ media.Kind) error {
	if c.err != nil {
		return c.err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

type scriptedPoster struct {
	mu       sync.Mutex
	loginErr error
	postErrs []error
	posts    []publish.Request

	// entered is signalled when a post starts; delay holds it open.
	entered chan struct{}
	delay   time.Duration
}

func (p *scriptedPoster) Name() string { return "scripted" }

func (p *scriptedPoster) Login(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loginErr
}

func (p *scriptedPoster) Post(_ context.Context, req publish.Request) error {
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	time.Sleep(p.delay)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, req)
	if len(p.postErrs) == 0 {
		return nil
	}
	err := p.postErrs[0]
	p.postErrs = p.postErrs[1:]
	return err
}

func (p *scriptedPoster) Posts() []publish.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publish.Request(nil), p.posts...)
}

type harness struct {
	cfg     *config.Config
	queue   *queue.Queue
	history *history.Store
	poster  *scriptedPoster
	lock    *fslock.Lock
	options string
	mgr     *workflow.Manager
}

func testPolicy() queue.CooldownPolicy {
	return queue.CooldownPolicy{
		Base:          time.Hour,
		EmptyInterval: time.Minute,
		BackoffFactor: 2,
		MaxBackoff:    6 * time.Hour,
		FreezeDefault: time.Hour,
	}
}

func newHarness(t *testing.T, conv media.Converter, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	return newHarnessWithPolicy(t, conv, testPolicy(), opts...)
}

// fastPolicy lets the publish lane poll an empty queue quickly.
func fastPolicy() queue.CooldownPolicy {
	p := testPolicy()
	p.EmptyInterval = 10 * time.Millisecond
	return p
}

func newHarnessWithPolicy(t *testing.T, conv media.Converter, policy queue.CooldownPolicy, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DropDir = filepath.Join(base, "outbound")
	cfg.Paths.SortedImageDir = filepath.Join(base, "sorted", "jpg")
	cfg.Paths.SortedVideoDir = filepath.Join(base, "sorted", "mp4")
	cfg.Paths.DiscardDir = filepath.Join(base, "discard")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	for _, dir := range []string{cfg.Paths.DropDir, cfg.Paths.SortedImageDir, cfg.Paths.SortedVideoDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	store, err := history.Open(filepath.Join(cfg.Paths.LogDir, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	optionsFile := filepath.Join(base, "post_options.txt")
	if err := os.WriteFile(optionsFile, []byte("name | caption\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &harness{
		cfg:     &cfg,
		queue:   queue.New(policy),
		history: store,
		poster:  &scriptedPoster{},
		lock:    fslock.New(""),
		options: optionsFile,
	}
	classifier := media.NewClassifier(media.ClassifierConfig{
		ImageDir: cfg.Paths.SortedImageDir,
		VideoDir: cfg.Paths.SortedVideoDir,
	}, conv, nil, nil)
	mgr, err := workflow.NewManager(&cfg, workflow.Dependencies{
		Queue:      h.queue,
		Classifier: classifier,
		Options:    captions.NewResolver(captions.Config{OptionsFile: optionsFile, PermanentHashtags: "#photo"}, nil),
		History:    store,
		Lock:       h.lock,
		Poster:     h.poster,
	}, nil, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h.mgr = mgr
	return h
}

func (h *harness) drop(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(h.cfg.Paths.DropDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (h *harness) sorted(t *testing.T, dir, name string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	cfg := config.Default()
	if _, err := workflow.NewManager(&cfg, workflow.Dependencies{}, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
	if _, err := workflow.NewManager(nil, workflow.Dependencies{}, nil); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestIngestOnceSortsAndDiscards(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	h.drop(t, "b-clip.mov", mp4Header)
	h.drop(t, "a-photo.png", pngHeader)
	h.drop(t, "c-anim.gif", gifHeader)
	h.drop(t, "d-notes.txt", []byte("not media at all"))
	h.drop(t, ".partial", pngHeader)

	report, err := h.mgr.IngestOnce(context.Background())
	if err != nil {
		t.Fatalf("IngestOnce: %v", err)
	}
	if report.Scanned != 4 || report.Accepted != 2 || report.Rejected != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	items := h.queue.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 queued items, got %d", len(items))
	}
	want := []struct {
		path string
		kind media.Kind
	}{
		{filepath.Join(h.cfg.Paths.SortedImageDir, "a-photo.jpg"), media.KindImage},
		{filepath.Join(h.cfg.Paths.SortedVideoDir, "b-clip.mp4"), media.KindVideo},
	}
	for i, w := range want {
		if items[i].Path != w.path || items[i].Kind != w.kind {
			t.Fatalf("item %d = %+v, want %s (%s)", i, items[i], w.path, w.kind)
		}
	}

	if left := listDir(t, h.cfg.Paths.DropDir); len(left) != 1 || left[0] != ".partial" {
		t.Fatalf("expected only the hidden file left in the drop folder, got %v", left)
	}
	discarded := listDir(t, h.cfg.Paths.DiscardDir)
	if len(discarded) != 2 {
		t.Fatalf("expected 2 discarded files, got %v", discarded)
	}
}

func TestIngestConversionFailureMovesFileAside(t *testing.T) {
	h := newHarness(t, &copyConverter{err: errors.New("magick exploded")})
	h.drop(t, "photo.png", pngHeader)

	report, err := h.mgr.IngestOnce(context.Background())
	if err != nil {
		t.Fatalf("IngestOnce: %v", err)
	}
	if report.Failed != 1 || report.Accepted != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if h.queue.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", h.queue.Len())
	}
	if got := listDir(t, h.cfg.Paths.DiscardDir); len(got) != 1 || got[0] != "photo.png" {
		t.Fatalf("expected photo.png in discard dir, got %v", got)
	}
	if got := listDir(t, h.cfg.Paths.SortedImageDir); len(got) != 0 {
		t.Fatalf("expected no partial output, got %v", got)
	}
}

func TestIngestDiscardKeepsExistingNames(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	if err := os.MkdirAll(h.cfg.Paths.DiscardDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.cfg.Paths.DiscardDir, "notes.txt"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	h.drop(t, "notes.txt", []byte("plain text"))

	if _, err := h.mgr.IngestOnce(context.Background()); err != nil {
		t.Fatalf("IngestOnce: %v", err)
	}
	got := listDir(t, h.cfg.Paths.DiscardDir)
	if len(got) != 2 || got[0] != "notes-1.txt" || got[1] != "notes.txt" {
		t.Fatalf("unexpected discard contents: %v", got)
	}
}

func TestIngestHonoursCancellation(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	h.drop(t, "photo.png", pngHeader)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.mgr.IngestOnce(ctx); err == nil {
		t.Fatal("expected a cancelled pass to fail")
	}
	if h.queue.Len() != 0 {
		t.Fatal("nothing should be queued after cancellation")
	}
	if got := listDir(t, h.cfg.Paths.DropDir); len(got) != 1 {
		t.Fatalf("dropped file should stay in place, got %v", got)
	}
}

func TestPublishNextPostsHeadWithOptions(t *testing.T) {
	h := newHarness(t, &copyConverter{}, workflow.WithAttemptIDs(func() string { return "attempt-1" }))
	if err := os.WriteFile(h.options, []byte("name | caption\nsunset | Evening light --latlon 47.5,8.7\nother | keep me\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := h.sorted(t, h.cfg.Paths.SortedImageDir, "sunset.jpg", time.Now())
	if err := h.queue.Add(queue.Item{Path: path, Kind: media.KindImage}); err != nil {
		t.Fatal(err)
	}

	result, err := h.mgr.PublishNext(context.Background())
	if err != nil {
		t.Fatalf("PublishNext: %v", err)
	}
	if result.Outcome != history.OutcomePosted || result.AttemptID != "attempt-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Cooldown != time.Hour {
		t.Fatalf("expected base cooldown, got %s", result.Cooldown)
	}

	posts := h.poster.Posts()
	if len(posts) != 1 {
		t.Fatalf("expected one post, got %d", len(posts))
	}
	req := posts[0]
	if req.Options.Caption != "Evening light\n#photo" {
		t.Fatalf("unexpected caption %q", req.Options.Caption)
	}
	if req.Options.Location == nil || req.Options.Location.Latitude != 47.5 {
		t.Fatalf("expected location, got %+v", req.Options.Location)
	}
	if req.AttemptID != "attempt-1" {
		t.Fatalf("attempt id not propagated: %q", req.AttemptID)
	}
	if h.queue.Len() != 0 {
		t.Fatal("posted item should leave the queue")
	}

	data, err := os.ReadFile(h.options)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "name | caption\nother | keep me\n" {
		t.Fatalf("options line not consumed: %q", data)
	}

	attempts, err := h.history.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 || attempts[0].Outcome != history.OutcomePosted || attempts[0].Provider != "scripted" {
		t.Fatalf("unexpected history: %+v", attempts)
	}

	status := h.mgr.Status()
	if status.Counters.Posted != 1 || status.LastPosted == nil || status.LastPosted.Path != path {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestPostedFileIsNotDiscoveredAgain(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	h.drop(t, "cat.png", pngHeader)
	if _, err := h.mgr.IngestOnce(context.Background()); err != nil {
		t.Fatalf("IngestOnce: %v", err)
	}
	if _, err := h.mgr.PublishNext(context.Background()); err != nil {
		t.Fatalf("PublishNext: %v", err)
	}
	if got := listDir(t, h.cfg.Paths.SortedImageDir); len(got) != 0 {
		t.Fatalf("posted file should leave sorted storage, got %v", got)
	}

	added, err := h.mgr.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if added != 0 || h.queue.Len() != 0 {
		t.Fatalf("posted media queued again after restart: added=%d len=%d", added, h.queue.Len())
	}
	if len(h.poster.Posts()) != 1 {
		t.Fatalf("expected exactly one post, got %d", len(h.poster.Posts()))
	}
}

func TestPostedDirKeepsPostedFiles(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	h.cfg.Paths.PostedDir = filepath.Join(filepath.Dir(h.cfg.Paths.DropDir), "posted")
	if err := os.MkdirAll(h.cfg.Paths.PostedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.cfg.Paths.PostedDir, "sunset.jpg"), []byte("earlier"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := h.sorted(t, h.cfg.Paths.SortedImageDir, "sunset.jpg", time.Now())
	if err := h.queue.Add(queue.Item{Path: path, Kind: media.KindImage}); err != nil {
		t.Fatal(err)
	}

	if _, err := h.mgr.PublishNext(context.Background()); err != nil {
		t.Fatalf("PublishNext: %v", err)
	}
	if got := listDir(t, h.cfg.Paths.SortedImageDir); len(got) != 0 {
		t.Fatalf("posted file should leave sorted storage, got %v", got)
	}
	got := listDir(t, h.cfg.Paths.PostedDir)
	if len(got) != 2 || got[0] != "sunset-1.jpg" || got[1] != "sunset.jpg" {
		t.Fatalf("unexpected posted dir contents: %v", got)
	}
}

func TestPublishDiscardWaitsForFilesystemLock(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	path := h.sorted(t, h.cfg.Paths.SortedImageDir, "meme.jpg", time.Now())
	h.poster.postErrs = []error{&publish.InvalidMediaError{Provider: "scripted", Path: path, Err: errors.New("unprocessable")}}
	if err := h.queue.Add(queue.Item{Path: path, Kind: media.KindImage}); err != nil {
		t.Fatal(err)
	}

	release, err := h.lock.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := h.mgr.PublishNext(context.Background())
		done <- err
	}()

	waitFor(t, "the post to resolve", func() bool { return h.queue.Len() == 0 })
	time.Sleep(50 * time.Millisecond)
	if got := listDir(t, h.cfg.Paths.DiscardDir); len(got) != 0 {
		t.Fatalf("discard ran without the filesystem lock: %v", got)
	}
	select {
	case err := <-done:
		t.Fatalf("PublishNext returned while the lock was held: %v", err)
	default:
	}

	release()
	if err := <-done; err == nil {
		t.Fatal("expected the rejection error")
	}
	if got := listDir(t, h.cfg.Paths.DiscardDir); len(got) != 1 || got[0] != "meme.jpg" {
		t.Fatalf("expected meme.jpg in discard dir, got %v", got)
	}
}

func TestStopWaitsForInFlightPost(t *testing.T) {
	h := newHarnessWithPolicy(t, &copyConverter{}, fastPolicy(), workflow.WithIntervals(time.Hour, 20*time.Millisecond))
	h.poster.entered = make(chan struct{}, 1)
	h.poster.delay = 300 * time.Millisecond
	path := h.sorted(t, h.cfg.Paths.SortedImageDir, "slow.jpg", time.Now())
	if err := h.queue.Add(queue.Item{Path: path, Kind: media.KindImage}); err != nil {
		t.Fatal(err)
	}
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-h.poster.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("post never started")
	}
	if err := h.mgr.Stop(10 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(h.poster.Posts()) != 1 {
		t.Fatal("Stop returned before the in-flight post resolved")
	}
	if h.queue.Len() != 0 {
		t.Fatalf("posted item should leave the queue, got %d", h.queue.Len())
	}
	if got := listDir(t, h.cfg.Paths.SortedImageDir); len(got) != 0 {
		t.Fatalf("posted file should leave sorted storage, got %v", got)
	}
}

func TestPublishNextEmptyQueueUsesShortInterval(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	result, err := h.mgr.PublishNext(context.Background())
	if err != nil {
		t.Fatalf("PublishNext: %v", err)
	}
	if !result.Empty || result.Cooldown != time.Minute {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(h.poster.Posts()) != 0 {
		t.Fatal("nothing should be posted")
	}
}

func TestPublishNextTransientFailureKeepsItem(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	h.poster.postErrs = []error{errors.New("connection reset")}
	path := h.sorted(t, h.cfg.Paths.SortedImageDir, "a.jpg", time.Now())
	if err := h.queue.Add(queue.Item{Path: path, Kind: media.KindImage}); err != nil {
		t.Fatal(err)
	}

	result, err := h.mgr.PublishNext(context.Background())
	if err == nil {
		t.Fatal("expected the poster error")
	}
	if result.Outcome != history.OutcomeFailed {
		t.Fatalf("unexpected outcome %q", result.Outcome)
	}
	if result.Cooldown != 2*time.Hour {
		t.Fatalf("expected one backoff step, got %s", result.Cooldown)
	}
	if head, ok := h.queue.PeekNext(); !ok || head.Path != path {
		t.Fatal("failed item should stay at the head")
	}
}

func TestPublishNextAuthFailureStopsLane(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	h.poster.postErrs = []error{&publish.AuthError{Provider: "scripted", Err: errors.New("token revoked")}}
	path := h.sorted(t, h.cfg.Paths.SortedImageDir, "a.jpg", time.Now())
	if err := h.queue.Add(queue.Item{Path: path, Kind: media.KindImage}); err != nil {
		t.Fatal(err)
	}

	result, err := h.mgr.PublishNext(context.Background())
	if !errors.Is(err, workflow.ErrLaneStopped) {
		t.Fatalf("expected ErrLaneStopped, got %v", err)
	}
	if result.Outcome != history.OutcomeAuth {
		t.Fatalf("unexpected outcome %q", result.Outcome)
	}
	if h.queue.Len() != 1 {
		t.Fatal("item should stay queued after an auth failure")
	}
}

func TestPublishNextInvalidMediaDiscardsItem(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	path := h.sorted(t, h.cfg.Paths.SortedImageDir, "broken.jpg", time.Now())
	h.poster.postErrs = []error{&publish.InvalidMediaError{Provider: "scripted", Path: path, Err: errors.New("unprocessable")}}
	if err := h.queue.Add(queue.Item{Path: path, Kind: media.KindImage}); err != nil {
		t.Fatal(err)
	}

	result, err := h.mgr.PublishNext(context.Background())
	if err == nil || result.Outcome != history.OutcomeDiscarded {
		t.Fatalf("expected discarded outcome, got %+v, %v", result, err)
	}
	if h.queue.Len() != 0 {
		t.Fatal("rejected media should leave the queue")
	}
	if got := listDir(t, h.cfg.Paths.DiscardDir); len(got) != 1 || got[0] != "broken.jpg" {
		t.Fatalf("expected broken.jpg in discard dir, got %v", got)
	}
}

func TestPublishNextRateLimitFreezes(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	h.poster.postErrs = []error{&publish.RateLimitError{Provider: "scripted", RetryAfter: 3 * time.Hour}}
	path := h.sorted(t, h.cfg.Paths.SortedImageDir, "a.jpg", time.Now())
	if err := h.queue.Add(queue.Item{Path: path, Kind: media.KindImage}); err != nil {
		t.Fatal(err)
	}

	result, err := h.mgr.PublishNext(context.Background())
	if err == nil || result.Outcome != history.OutcomeFrozen {
		t.Fatalf("expected frozen outcome, got %+v, %v", result, err)
	}
	if _, frozen := h.queue.Frozen(); !frozen {
		t.Fatal("queue should be frozen")
	}
	if wait := h.queue.Cooldown(); wait < 2*time.Hour+59*time.Minute {
		t.Fatalf("cooldown should cover the freeze, got %s", wait)
	}
}

func TestDiscoverQueuesOldestFirst(t *testing.T) {
	h := newHarness(t, &copyConverter{})
	base := time.Now().Add(-time.Hour)
	newest := h.sorted(t, h.cfg.Paths.SortedImageDir, "c.jpg", base.Add(2*time.Minute))
	oldest := h.sorted(t, h.cfg.Paths.SortedVideoDir, "z.mp4", base)
	tieB := h.sorted(t, h.cfg.Paths.SortedImageDir, "b.jpg", base.Add(time.Minute))
	tieA := h.sorted(t, h.cfg.Paths.SortedVideoDir, "a.mp4", base.Add(time.Minute))

	added, err := h.mgr.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if added != 4 {
		t.Fatalf("expected 4 items, got %d", added)
	}
	items := h.queue.Items()
	want := []string{oldest, tieA, tieB, newest}
	for i, path := range want {
		if items[i].Path != path {
			t.Fatalf("position %d: got %s want %s", i, items[i].Path, path)
		}
	}
	if items[0].Kind != media.KindVideo || items[3].Kind != media.KindImage {
		t.Fatalf("kinds not taken from the directory: %+v", items)
	}

	again, err := h.mgr.Discover(context.Background())
	if err != nil || again != 0 {
		t.Fatalf("second discover should add nothing, got %d, %v", again, err)
	}
}

func TestLanesIngestAndPublish(t *testing.T) {
	h := newHarnessWithPolicy(t, &copyConverter{}, fastPolicy(), workflow.WithIntervals(20*time.Millisecond, 20*time.Millisecond))
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.mgr.Stop(time.Second) })

	h.drop(t, "photo.png", pngHeader)
	waitFor(t, "first post", func() bool { return len(h.poster.Posts()) == 1 })

	if err := h.mgr.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	status := h.mgr.Status()
	if status.Running || !status.LoggedIn || status.Counters.Posted != 1 || status.Counters.Ingested != 1 {
		t.Fatalf("unexpected status after stop: %+v", status)
	}
	if status.Queue.Cooldown <= 0 {
		t.Fatal("a cooldown should be scheduled after the post")
	}
}

func TestLoginRejectionStopsOnlyPublishLane(t *testing.T) {
	h := newHarnessWithPolicy(t, &copyConverter{}, fastPolicy(), workflow.WithIntervals(20*time.Millisecond, 20*time.Millisecond))
	h.poster.loginErr = &publish.AuthError{Provider: "scripted", Err: errors.New("bad token")}
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.mgr.Stop(time.Second) })

	publishStopped := func() bool {
		for _, lane := range h.mgr.Status().Lanes {
			if lane.Name == "publish" {
				return lane.Stopped
			}
		}
		return false
	}
	waitFor(t, "publish lane to stop", publishStopped)

	h.drop(t, "photo.png", pngHeader)
	waitFor(t, "ingestion to continue", func() bool { return h.queue.Len() == 1 })

	status := h.mgr.Status()
	if status.PublishState != "stopped" || status.LastError == "" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(h.poster.Posts()) != 0 {
		t.Fatal("nothing should be posted without a login")
	}
}

func TestStartTwiceFails(t *testing.T) {
	h := newHarness(t, &copyConverter{}, workflow.WithIntervals(time.Hour, time.Hour))
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.mgr.Stop(time.Second)
	if err := h.mgr.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}
