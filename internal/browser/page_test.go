package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteFile_CreatesParentsAndOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, writeFile(fs, "verification/nested/main_ui.png", []byte("first")))
	require.NoError(t, writeFile(fs, "verification/nested/main_ui.png", []byte("second")))

	data, err := afero.ReadFile(fs, "verification/nested/main_ui.png")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteFile_ReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	assert.Error(t, writeFile(fs, "verification/main_ui.png", []byte("png")))
}

func TestPage_ClosedPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Page{ctx: ctx, fs: afero.NewMemMapFs(), logger: zap.NewNop()}

	assert.False(t, p.Live())

	var navErr *scenariotypes.NavigationError
	assert.True(t, errors.As(p.Navigate(context.Background(), "http://localhost:3000", time.Second), &navErr))

	var clickErr *scenariotypes.InteractionError
	assert.True(t, errors.As(p.Click(context.Background(), "text=Research Lab"), &clickErr))

	var capErr *scenariotypes.CaptureError
	require.True(t, errors.As(p.Screenshot(context.Background(), "verification/x.png"), &capErr))
	assert.Equal(t, scenariotypes.CaptureOpCapture, capErr.Op)

	_, err := p.WaitFor(context.Background(), scenariotypes.ElementPresent("canvas", time.Second))
	assert.Error(t, err)
}

const labPage = `<!DOCTYPE html>
<html><body>
<h1>VOXEL WALKER</h1>
<button id="lab" onclick="setTimeout(function(){document.getElementById('shop').hidden=false;},100)">Research Lab</button>
<div id="shop" hidden><h2>Research &amp; Development</h2></div>
<div style="display:none">Game Over</div>
<script>setTimeout(function(){document.body.appendChild(document.createElement('canvas'));}, 300);</script>
</body></html>`

func TestPage_LiveBrowser(t *testing.T) {
	chrome := findChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, labPage)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Browser.ExecutablePath = chrome
	cfg.Browser.WebGL = false
	fs := afero.NewMemMapFs()
	m := NewManager(cfg, fs, zap.NewNop())

	ctx := context.Background()
	session, err := m.Acquire(ctx, true)
	require.NoError(t, err)
	defer m.Release(session)

	page, err := session.Page(ctx)
	require.NoError(t, err)

	require.NoError(t, page.Navigate(ctx, srv.URL, 0))
	assert.Contains(t, page.URL(), srv.URL)

	outcome, err := page.WaitFor(ctx, scenariotypes.ElementPresent("canvas", 5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, scenariotypes.OutcomeSatisfied, outcome)

	outcome, err = page.WaitFor(ctx, scenariotypes.TextPresent("voxel walker", 5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, scenariotypes.OutcomeSatisfied, outcome)

	// The modal is in the DOM but hidden until the click.
	outcome, err = page.WaitFor(ctx, scenariotypes.TextPresent("Research & Development", 300*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, scenariotypes.OutcomeTimedOut, outcome)

	require.NoError(t, page.Click(ctx, "text=Research Lab"))
	outcome, err = page.WaitFor(ctx, scenariotypes.TextPresent("Research & Development", 5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, scenariotypes.OutcomeSatisfied, outcome)

	outcome, err = page.WaitFor(ctx, scenariotypes.TextPresent("Game Over", 300*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, scenariotypes.OutcomeTimedOut, outcome)

	var clickErr *scenariotypes.InteractionError
	assert.True(t, errors.As(page.Click(ctx, "text=Missing Button"), &clickErr))

	require.NoError(t, page.Screenshot(ctx, "verification/shop_modal.png"))
	data, err := afero.ReadFile(fs, "verification/shop_modal.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])

	require.NoError(t, page.(*Page).SaveDOM(ctx, "verification/shop_modal.html"))
	snapshot, err := afero.ReadFile(fs, "verification/shop_modal.html")
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), "Research &amp; Development")

	require.NoError(t, m.Release(session))
	assert.False(t, page.Live())
}

func TestPage_LiveUnreachableHost(t *testing.T) {
	chrome := findChrome(t)

	cfg := testConfig()
	cfg.Browser.ExecutablePath = chrome
	cfg.Browser.WebGL = false
	m := NewManager(cfg, afero.NewMemMapFs(), zap.NewNop())

	ctx := context.Background()
	session, err := m.Acquire(ctx, true)
	require.NoError(t, err)
	defer m.Release(session)

	page, err := session.Page(ctx)
	require.NoError(t, err)

	err = page.Navigate(ctx, "http://127.0.0.1:1/", 5*time.Second)
	var navErr *scenariotypes.NavigationError
	require.True(t, errors.As(err, &navErr), "got %v", err)
	assert.True(t, page.Live(), "the tab survives a failed navigation")
}
