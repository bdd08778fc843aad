package browser

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/todo-e2e/internal/config"
	"github.com/kuitang/todo-e2e/internal/fixtures"
	"github.com/kuitang/todo-e2e/internal/mockroute"
)

func TestPathPattern(t *testing.T) {
	t.Parallel()

	re := pathPattern("/agent/1/delete")
	for _, ok := range []string{
		"http://localhost:4173/agent/1/delete",
		"http://localhost:4173/agent/1/delete/",
		"https://example.test/agent/1/delete/?from=list",
	} {
		assert.True(t, re.MatchString(ok), ok)
	}
	for _, bad := range []string{
		"http://localhost:4173/agent/1/delete/confirm",
		"http://localhost:4173/agent/1/",
		"http://localhost:4173/x/agent/1/delete",
	} {
		assert.False(t, re.MatchString(bad), bad)
	}

	assert.True(t, pathPattern("/").MatchString("http://localhost:4173/"))
	assert.True(t, pathPattern("/agent/").MatchString("http://localhost:4173/agent"))
}

func TestSnapshotDir(t *testing.T) {
	t.Parallel()

	abs := filepath.Join(t.TempDir(), "goldens")
	assert.Equal(t, abs, snapshotDir(abs))

	rel := snapshotDir("testdata/snapshots")
	assert.True(t, filepath.IsAbs(rel))
	assert.True(t, strings.HasSuffix(filepath.ToSlash(rel), "tests/browser/testdata/snapshots"), rel)
}

func TestContextOptions_PinTimezoneAndBase(t *testing.T) {
	t.Parallel()

	env := &BrowserTestEnv{
		Config:  &config.Config{Timezone: "Asia/Tokyo"},
		BaseURL: "http://localhost:4173",
	}
	opts := env.contextOptions()
	require.NotNil(t, opts.TimezoneId)
	require.NotNil(t, opts.BaseURL)
	assert.Equal(t, "Asia/Tokyo", *opts.TimezoneId)
	assert.Equal(t, "http://localhost:4173", *opts.BaseURL)
}

func TestCaptureCSRF_RecordsAndFallsThrough(t *testing.T) {
	t.Parallel()

	router := mockroute.New(mockroute.WithBaseURL("http://localhost:4173"))
	fixtures.MockResource(router, fixtures.KindAgent, 1, fixtures.SampleAgent(1))
	tokens := CaptureCSRF(router, "**/api/agents/**")

	get, err := mockroute.NewRequest(http.MethodGet, "/api/agents/1/", nil)
	require.NoError(t, err)
	res, err := router.Dispatch(context.Background(), get)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Response.Status)
	assert.Empty(t, tokens(), "GET is not captured")

	del, err := mockroute.NewRequest(http.MethodDelete, "/api/agents/1/", nil)
	require.NoError(t, err)
	del.Header.Set(fixtures.CSRFHeaderName, fixtures.CSRFToken)
	res, err = router.Dispatch(context.Background(), del)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Response.Status)
	assert.Equal(t, []string{fixtures.CSRFToken}, tokens())

	ExpectCSRFHeader(t, tokens())
}
