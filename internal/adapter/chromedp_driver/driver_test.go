package chromedp_driver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/pagestate-service/internal/repository"
)

func TestKeyFor(t *testing.T) {
	k, err := keyFor(repository.KeyEscape)
	require.NoError(t, err)
	assert.Equal(t, kb.Escape, k)

	k, err = keyFor("a")
	require.NoError(t, err)
	assert.Equal(t, "a", k)

	_, err = keyFor("PageDown")
	assert.Error(t, err)
}

const testPage = `<html><head><title>Skupina</title></head><body>
<div id="counter">0</div>
<button id="add" onclick="document.getElementById('counter').textContent = '1'">Přidat</button>
</body></html>`

func chromePath(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary on PATH")
	return ""
}

func TestDriverAgainstChrome(t *testing.T) {
	if testing.Short() {
		t.Skip("browser test")
	}
	bin := chromePath(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := NewBrowser(ctx, Options{Headless: true, ExecPath: bin}, nil)
	require.NoError(t, err)
	defer b.Close()

	d, err := b.NewPage()
	require.NoError(t, err)

	loaded := make(chan struct{}, 4)
	stop := d.OnLoad(func() { loaded <- struct{}{} })
	defer stop()

	require.NoError(t, d.Navigate(ctx, srv.URL))
	select {
	case <-loaded:
	case <-ctx.Done():
		t.Fatal("no load event")
	}

	title, err := d.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Skupina", title)

	ok, err := d.Exists(ctx, "#add")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.ClickXPath(ctx, "/html[1]/body[1]/button[1]"))
	var counter string
	require.NoError(t, d.Evaluate(ctx, `document.getElementById('counter').textContent`, &counter))
	assert.Equal(t, "1", counter)

	err = d.ClickSelector(ctx, "#missing")
	assert.ErrorIs(t, err, repository.ErrElementNotFound)

	d.Close()
	assert.True(t, d.Closed())
	_, err = d.URL(ctx)
	assert.ErrorIs(t, err, repository.ErrPageClosed)
}
