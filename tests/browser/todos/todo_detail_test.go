package browser

import (
	"net/http"
	"testing"
	"time"

	"github.com/kuitang/todo-e2e/internal/fixtures"
	"github.com/kuitang/todo-e2e/internal/mockroute"
)

const todoDetailPattern = "**/api/todos/1/"

// newTodoPage serves todo 1 (detail, branches, worktrees), updates and
// deletes of it, and the list the delete page redirects to.
func newTodoPage(t *testing.T) (*BrowserTestEnv, *MockedPage) {
	t.Helper()

	env := SetupBrowserTestEnv(t)
	mp := env.NewMockedPage(t)
	mockTodoList(mp, 0, listedTodo())
	fixtures.MockResource(mp.Router, fixtures.KindTodo, 1, fixtures.SampleTodo(1))
	fixtures.MockTodoDetailAPIs(mp.Router, 1)
	return env, mp
}

func TestBrowser_TodoDetail_LoadingThenDetails(t *testing.T) {
	env, mp := newTodoPage(t)
	mp.Router.Register(todoDetailPattern,
		mockroute.Delayed(300*time.Millisecond, mockroute.JSON(http.StatusOK, fixtures.SampleTodo(1))),
		mockroute.Methods(http.MethodGet))

	Navigate(t, mp.Page, env.BaseURL, "/todo/1")

	WaitForSelector(t, mp.Page, "text=Loading...")
	WaitForSelector(t, mp.Page, "text=Todo詳細")
	WaitForSelector(t, mp.Page, "h1")
	WaitForSelector(t, mp.Page, "text=Test TodoList")
	WaitForSelector(t, mp.Page, "text=Test Agent")
	WaitForSelector(t, mp.Page, "text=waiting")

	env.MatchScreenshot(t, mp.Page, "todos/detail.png")
}

func TestBrowser_TodoDetail_UpdateLink(t *testing.T) {
	env, mp := newTodoPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/todo/1")
	WaitForSelector(t, mp.Page, "text=Test TodoList")
	Click(t, mp.Page, `a:has-text("編集")`)
	ExpectPath(t, mp.Page, "/todo/1/update/")
}

func TestBrowser_TodoDetail_DeleteLink(t *testing.T) {
	env, mp := newTodoPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/todo/1")
	WaitForSelector(t, mp.Page, "text=Test TodoList")
	Click(t, mp.Page, `a:has-text("削除")`)
	ExpectPath(t, mp.Page, "/todo/1/delete/")
}
