package browser

import (
	"net/http"
	"testing"
	"time"

	"github.com/kuitang/todo-e2e/internal/fixtures"
	"github.com/kuitang/todo-e2e/internal/mockroute"
)

const extensionsPattern = "**/api/extensions/"

func commandExtension() fixtures.Extension {
	ext := fixtures.SampleExtension(1)
	ext.Type = "command"
	ext.Cmd = `echo "test"`
	ext.Args = []string{}
	ext.Envs = map[string]string{}
	ext.Timeout = 60
	return ext
}

func TestBrowser_ExtensionList_LoadingThenTable(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	mp := env.NewMockedPage(t)
	mp.Router.Register(extensionsPattern,
		mockroute.Delayed(300*time.Millisecond, mockroute.JSON(http.StatusOK, []fixtures.Extension{commandExtension()})),
		mockroute.Methods(http.MethodGet))

	Navigate(t, mp.Page, env.BaseURL, "/extension/")

	ExpectText(t, mp.Page, "#loading-indicator", "Loading...")
	WaitForHidden(t, mp.Page, "#loading-indicator")

	ExpectText(t, mp.Page, "#extensions-table", "Test Extension")
	ExpectText(t, mp.Page, "#extensions-table", "command")
	ExpectText(t, mp.Page, "#extensions-table", "60s")

	env.MatchScreenshot(t, mp.Page, "extensions/list-table.png")
}

func TestBrowser_ExtensionList_LoadingThenEmpty(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	mp := env.NewMockedPage(t)
	mp.Router.Register(extensionsPattern,
		mockroute.Delayed(300*time.Millisecond, mockroute.JSON(http.StatusOK, []fixtures.Extension{})),
		mockroute.Methods(http.MethodGet))

	Navigate(t, mp.Page, env.BaseURL, "/extension/")

	ExpectText(t, mp.Page, "#loading-indicator", "Loading...")
	WaitForHidden(t, mp.Page, "#loading-indicator")
	ExpectText(t, mp.Page, "#no-extensions", "No Extensions found.")
}

func TestBrowser_ExtensionList_BackLink(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	mp := env.NewMockedPage(t)
	mp.Router.Register("**/api/**", mockroute.JSON(http.StatusOK, []any{}), mockroute.Methods(http.MethodGet), mockroute.Named("empty lists"))

	Navigate(t, mp.Page, env.BaseURL, "/extension/")
	WaitForHidden(t, mp.Page, "#loading-indicator")

	Click(t, mp.Page, "#back-link")
	ExpectPath(t, mp.Page, "/")
}
