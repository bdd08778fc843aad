package browser

import (
	"net/http"
	"testing"
	"time"

	"github.com/kuitang/todo-e2e/internal/fixtures"
	"github.com/kuitang/todo-e2e/internal/mockroute"
)

func TestBrowser_AgentDelete_ShowsConfirmation(t *testing.T) {
	env, mp := newAgentFormPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/agent/1/delete")
	ExpectPath(t, mp.Page, "/agent/1/delete/")

	ExpectText(t, mp.Page, ".text-red-600", "このAgentを削除しますか？")
	for _, label := range []string{"text=ID", "text=Name", "text=Test Agent", "text=System Message", "text=Command", "text=Created"} {
		WaitForSelector(t, mp.Page, label)
	}
}

func TestBrowser_AgentDelete_DeletesAndRedirects(t *testing.T) {
	env, mp := newAgentFormPage(t)
	mp.Router.Register(agentDetailPattern,
		mockroute.Delayed(300*time.Millisecond, mockroute.JSON(http.StatusOK, fixtures.SampleAgent(1))),
		mockroute.Methods(http.MethodGet))
	csrf := CaptureCSRF(mp.Router, agentDetailPattern)

	Navigate(t, mp.Page, env.BaseURL, "/agent/1/delete")
	WaitForSelector(t, mp.Page, "text=Loading...")
	WaitForSelector(t, mp.Page, ".text-red-600")

	Click(t, mp.Page, `button:has-text("Delete")`)
	ExpectPath(t, mp.Page, "/agent/")

	if n := mp.Router.CallCount(http.MethodDelete, agentDetailPattern); n != 1 {
		t.Errorf("DELETE %s served %d times, want 1", agentDetailPattern, n)
	}
	ExpectCSRFHeader(t, csrf())
}

func TestBrowser_AgentDelete_CancelGoesToDetail(t *testing.T) {
	env, mp := newAgentFormPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/agent/1/delete")
	WaitForSelector(t, mp.Page, ".text-red-600")
	Click(t, mp.Page, `a:has-text("Cancel")`)
	ExpectPath(t, mp.Page, "/agent/1/")
}

func TestBrowser_AgentDelete_ServerError(t *testing.T) {
	env, mp := newAgentFormPage(t)
	mp.Router.Register(agentDetailPattern, mockroute.ServerError("Failed to delete agent"), mockroute.Methods(http.MethodDelete))

	Navigate(t, mp.Page, env.BaseURL, "/agent/1/delete")
	WaitForSelector(t, mp.Page, ".text-red-600")
	Click(t, mp.Page, `button:has-text("Delete")`)

	ExpectText(t, mp.Page, ".bg-red-50", "Failed to delete agent")
	ExpectPath(t, mp.Page, "/agent/1/delete/")
}

func TestBrowser_AgentDelete_Snapshot(t *testing.T) {
	env, mp := newAgentFormPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/agent/1/delete")
	WaitForSelector(t, mp.Page, ".max-w-2xl")
	WaitForSelector(t, mp.Page, ".text-red-600")
	WaitForSelector(t, mp.Page, `button:has-text("Delete")`)
	WaitForSelector(t, mp.Page, `a:has-text("Cancel")`)

	env.MatchHTMLSnapshot(t, mp.Page, "form", "agents/delete-form.html")
}
