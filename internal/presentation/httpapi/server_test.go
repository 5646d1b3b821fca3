package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-recorder/internal/application"
	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/export"
)

type fakeStudio struct {
	state     application.StudioState
	recordErr error
	switchErr error
	shareErr  error
	backErr   error
	toggles   int
	resized   [][2]int
}

func (f *fakeStudio) State() application.StudioState { return f.state }

func (f *fakeStudio) ToggleRecord(context.Context) (domain.RecordState, error) {
	if f.recordErr != nil {
		return domain.RecordIdle, f.recordErr
	}
	f.toggles++
	if f.toggles%2 == 1 {
		return domain.RecordRecording, nil
	}
	return domain.RecordIdle, nil
}

func (f *fakeStudio) SwitchCamera(context.Context) error { return f.switchErr }
func (f *fakeStudio) Download(context.Context) (string, error) {
	return "recordings/recording.mp4", nil
}
func (f *fakeStudio) Share(context.Context) error { return f.shareErr }
func (f *fakeStudio) Back() error                 { return f.backErr }

func (f *fakeStudio) Resize(w, h int) (int, int, error) {
	if w <= 0 || h <= 0 {
		return 0, 0, domain.ErrInvalidSize
	}
	f.resized = append(f.resized, [2]int{w, h})
	return min(w, 1920) &^ 1, min(h, 1080) &^ 1, nil
}

type fakePreview struct{ img image.Image }

func (p fakePreview) Snapshot() image.Image { return p.img }
func (p fakePreview) Subscribe(int) (<-chan image.Image, func()) {
	ch := make(chan image.Image, 1)
	if p.img != nil {
		ch <- p.img
	}
	return ch, func() {}
}

func newTestServer(t *testing.T, studio *fakeStudio, preview Preview, links *export.Links, board *Board) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(Deps{
		Studio:    studio,
		Preview:   preview,
		Artifacts: links,
		Board:     board,
		Logger:    zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRecordToggles(t *testing.T) {
	studio := &fakeStudio{}
	srv := newTestServer(t, studio, fakePreview{}, export.NewLinks(), NewBoard())

	want := []string{"recording", "idle", "recording", "idle"}
	for _, w := range want {
		resp := post(t, srv.URL+"/api/record")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		decode(t, resp, &body)
		assert.Equal(t, w, body["record_state"])
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		studio  *fakeStudio
		path    string
		code    int
		kind    string
		message string
	}{
		{"record disabled", &fakeStudio{recordErr: domain.ErrRecordDisabled}, "/api/record", http.StatusConflict, "", ""},
		{"switch while recording", &fakeStudio{switchErr: domain.ErrSwitchDisabled}, "/api/switch", http.StatusConflict, "", ""},
		{
			"back camera missing",
			&fakeStudio{switchErr: domain.NewError(domain.KindDeviceNotFound, "open exact-hd", errors.New("none")).WithFacing(domain.FacingBack)},
			"/api/switch", http.StatusNotFound, "device_not_found", "Could not find the back camera.",
		},
		{
			"share unsupported",
			&fakeStudio{shareErr: domain.NewError(domain.KindShareUnsupported, "share", errors.New("no hub"))},
			"/api/share", http.StatusNotImplemented, "share_unsupported", "",
		},
		{"back without artifact", &fakeStudio{backErr: domain.ErrNoArtifact}, "/api/back", http.StatusNotFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.studio, fakePreview{}, export.NewLinks(), NewBoard())
			resp := post(t, srv.URL+tt.path)
			assert.Equal(t, tt.code, resp.StatusCode)

			var body errorResponse
			decode(t, resp, &body)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.kind, body.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
		})
	}
}

func TestRenderSize(t *testing.T) {
	studio := &fakeStudio{}
	srv := newTestServer(t, studio, fakePreview{}, export.NewLinks(), NewBoard())

	postJSON := func(body string) *http.Response {
		resp, err := http.Post(srv.URL+"/api/render-size", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := postJSON(`{"width":2561,"height":1441}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got renderSize
	decode(t, resp, &got)
	assert.Equal(t, renderSize{Width: 1920, Height: 1080}, got)
	assert.Equal(t, [][2]int{{2561, 1441}}, studio.resized)

	assert.Equal(t, http.StatusBadRequest, postJSON(`{"width":0,"height":720}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, postJSON(`not json`).StatusCode)
	assert.Len(t, studio.resized, 1)
}

func TestStateIncludesNoticesAndBusy(t *testing.T) {
	board := NewBoard()
	studio := &fakeStudio{state: application.StudioState{
		Facing:      "user",
		RecordState: "idle",
		Artifact:    &application.ArtifactView{Ref: "abc", Filename: "recording.mp4"},
	}}
	srv := newTestServer(t, studio, fakePreview{}, export.NewLinks(), board)

	board.Notify("Error processing video. Please try again.")
	board.ShowBusy()

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st stateResponse
	decode(t, resp, &st)
	assert.True(t, st.Busy)
	assert.Equal(t, "/artifacts/abc", st.Artifact.Ref)
	require.Len(t, st.Notices, 1)
	assert.Equal(t, "Error processing video. Please try again.", st.Notices[0].Message)

	resp2, err := http.Get(srv.URL + "/api/state?after=1")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var st2 stateResponse
	decode(t, resp2, &st2)
	assert.Empty(t, st2.Notices)
}

func TestArtifactDownloadHeaders(t *testing.T) {
	links := export.NewLinks()
	ref := links.Publish(domain.Artifact{
		Filename:  "recording.mp4",
		Blob:      domain.Blob{Data: []byte("moov"), MimeType: "video/mp4"},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	srv := newTestServer(t, &fakeStudio{}, fakePreview{}, links, NewBoard())

	resp, err := http.Get(srv.URL + "/artifacts/" + ref)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="recording.mp4"`, resp.Header.Get("Content-Disposition"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "moov", string(data))

	links.Revoke(ref)
	resp2, err := http.Get(srv.URL + "/artifacts/" + ref)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestSnapshot(t *testing.T) {
	srv := newTestServer(t, &fakeStudio{}, fakePreview{}, export.NewLinks(), NewBoard())
	resp, err := http.Get(srv.URL + "/snapshot.jpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	srv = newTestServer(t, &fakeStudio{}, fakePreview{img: image.NewRGBA(image.Rect(0, 0, 4, 4))}, export.NewLinks(), NewBoard())
	resp, err = http.Get(srv.URL + "/snapshot.jpg")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
}

func TestIndexAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeStudio{}, fakePreview{}, export.NewLinks(), NewBoard())

	for _, path := range []string{"/", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestIndexPageAlertsOnlyNotices(t *testing.T) {
	srv := newTestServer(t, &fakeStudio{}, fakePreview{}, export.NewLinks(), NewBoard())

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(string(page), "alert("), "only board notices are alerted")
	assert.Contains(t, string(page), "alert(n.message)")
	assert.Contains(t, string(page), `"/api/render-size"`)
	assert.Contains(t, string(page), `addEventListener("resize"`)
}

func TestBoard(t *testing.T) {
	b := NewBoard()
	assert.False(t, b.Busy())
	b.HideBusy()
	assert.False(t, b.Busy())

	b.ShowBusy()
	assert.True(t, b.Busy())
	b.HideBusy()
	assert.False(t, b.Busy())

	for i := 0; i < maxNotices+5; i++ {
		b.Notify("n")
	}
	all := b.Since(0)
	assert.Len(t, all, maxNotices)
	assert.Equal(t, uint64(maxNotices+5), all[len(all)-1].ID)
}
