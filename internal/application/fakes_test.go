package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"lens-recorder/internal/domain"
)

type fakeHandle struct {
	id      string
	facing  domain.FacingMode
	tier    domain.ConstraintTier
	mu      sync.Mutex
	closed  bool
	closes  int
	backend *fakeBackend
}

func (h *fakeHandle) ID() string                  { return h.id }
func (h *fakeHandle) Facing() domain.FacingMode   { return h.facing }
func (h *fakeHandle) Tier() domain.ConstraintTier { return h.tier }
func (h *fakeHandle) Frames() domain.FrameReader  { return nil }

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	h.closed = true
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// fakeBackend роняет наборы из fail по ключу "<facing>/<tier>" или "<tier>".
type fakeBackend struct {
	mu      sync.Mutex
	devices []domain.VideoDevice
	listErr error
	fail    map[string]error
	opened  []domain.CaptureRequest
	handles []*fakeHandle
}

func facingPtr(f domain.FacingMode) *domain.FacingMode { return &f }

func twoCameras() []domain.VideoDevice {
	return []domain.VideoDevice{
		{ID: "front-cam", Label: "Front Camera", Facing: facingPtr(domain.FacingFront)},
		{ID: "back-cam", Label: "Back Camera", Facing: facingPtr(domain.FacingBack)},
	}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{devices: twoCameras(), fail: map[string]error{}}
}

func (b *fakeBackend) ListDevices(context.Context) ([]domain.VideoDevice, error) {
	return b.devices, b.listErr
}

func (b *fakeBackend) Open(_ context.Context, req domain.CaptureRequest) (domain.CaptureHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = append(b.opened, req)

	if err, ok := b.fail[req.Facing.Label()+"/"+req.Tier.Name]; ok {
		return nil, err
	}
	if err, ok := b.fail[req.Tier.Name]; ok {
		return nil, err
	}
	h := &fakeHandle{
		id:      fmt.Sprintf("h%d", len(b.handles)+1),
		facing:  req.Facing,
		tier:    req.Tier,
		backend: b,
	}
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *fakeBackend) tiersTried() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.opened))
	for i, r := range b.opened {
		names[i] = r.Tier.Name
	}
	return names
}

func (b *fakeBackend) live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.handles {
		if !h.isClosed() {
			n++
		}
	}
	return n
}

func failErr(kind domain.ErrorKind) error {
	return domain.NewError(kind, "driver", errors.New(kind.String()))
}

type fakeRender struct {
	mu        sync.Mutex
	source    domain.CaptureHandle
	transform domain.Transform
	playing   bool
	plays     int
	width     int
	height    int
	fps       int
	playErr   error
}

func (r *fakeRender) SetSource(h domain.CaptureHandle, t domain.Transform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playing {
		return domain.ErrSessionPlaying
	}
	r.source, r.transform = h, t
	return nil
}

func (r *fakeRender) SetRenderSize(w, h int) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = w&^1, h&^1
	return r.width, r.height
}

func (r *fakeRender) SetFPSLimit(fps int) {
	r.mu.Lock()
	r.fps = fps
	r.mu.Unlock()
}

func (r *fakeRender) Play(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playErr != nil {
		return r.playErr
	}
	if r.source == nil {
		return domain.ErrNoSource
	}
	r.playing = true
	r.plays++
	return nil
}

func (r *fakeRender) Pause(context.Context) error {
	r.mu.Lock()
	r.playing = false
	r.mu.Unlock()
	return nil
}

func (r *fakeRender) Source() domain.CaptureHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

func (r *fakeRender) isPlaying() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

type fakeSurface struct{}

func (fakeSurface) Snapshot() image.Image { return nil }
func (fakeSurface) Size() (int, int)      { return 1920, 1080 }

// fakeMedia отдает фрагменты при остановке, как настоящий кодировщик.
type fakeMedia struct {
	mu       sync.Mutex
	chunks   []domain.Chunk
	startErr error
	stopErr  error
	onData   func(domain.Chunk)
	starts   int
}

func (m *fakeMedia) Start(_ context.Context, _ Surface, _ int, onData func(domain.Chunk)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.starts++
	m.onData = onData
	return nil
}

func (m *fakeMedia) Stop() error {
	m.mu.Lock()
	onData, chunks := m.onData, m.chunks
	m.onData = nil
	m.mu.Unlock()
	for _, c := range chunks {
		onData(c)
	}
	return m.stopErr
}

func (m *fakeMedia) MimeType() string { return "video/mp4" }

type fakeTranscoder struct {
	mu    sync.Mutex
	gate  chan struct{}
	err   error
	calls int
}

func (t *fakeTranscoder) Remux(_ context.Context, in domain.Blob) (domain.Blob, error) {
	t.mu.Lock()
	t.calls++
	gate, err := t.gate, t.err
	t.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.Blob{}, domain.NewError(domain.KindProcessingFailed, "transcode remux", err)
	}
	if in.Size() == 0 {
		return domain.Blob{}, domain.NewError(domain.KindProcessingFailed, "transcode write", errors.New("empty recording"))
	}
	return domain.Blob{Data: append([]byte("moov"), in.Data...), MimeType: in.MimeType}, nil
}

type fakeDownloader struct {
	mu    sync.Mutex
	saved []domain.Artifact
}

func (d *fakeDownloader) Download(_ context.Context, a domain.Artifact) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saved = append(d.saved, a)
	return "recordings/" + a.Filename, nil
}

type fakeSharer struct {
	can    bool
	err    error
	shared []domain.SharePayload
}

func (s *fakeSharer) CanShare(context.Context, domain.SharePayload) bool { return s.can }

func (s *fakeSharer) Share(_ context.Context, p domain.SharePayload) error {
	if s.err != nil {
		return s.err
	}
	s.shared = append(s.shared, p)
	return nil
}

type fakeLinks struct {
	mu      sync.Mutex
	seq     int
	live    map[string]domain.Artifact
	revoked []string
}

func newFakeLinks() *fakeLinks { return &fakeLinks{live: map[string]domain.Artifact{}} }

func (l *fakeLinks) Publish(a domain.Artifact) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	ref := fmt.Sprintf("ref-%d", l.seq)
	l.live[ref] = a
	return ref
}

func (l *fakeLinks) Revoke(ref string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.live, ref)
	l.revoked = append(l.revoked, ref)
}

type fakeBusy struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBusy) ShowBusy() { b.add("show") }
func (b *fakeBusy) HideBusy() { b.add("hide") }

func (b *fakeBusy) add(e string) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *fakeBusy) list() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(msg string) {
	n.mu.Lock()
	n.messages = append(n.messages, msg)
	n.mu.Unlock()
}

func (n *fakeNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
