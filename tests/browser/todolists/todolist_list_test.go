package browser

import (
	"net/http"
	"testing"
	"time"

	"github.com/kuitang/todo-e2e/internal/fixtures"
	"github.com/kuitang/todo-e2e/internal/mockroute"
)

const todolistsPattern = "**/api/todolists/"

func TestBrowser_TodoListList_LoadingThenEmpty(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	mp := env.NewMockedPage(t)
	mp.Router.Register(todolistsPattern,
		mockroute.Delayed(200*time.Millisecond, mockroute.JSON(http.StatusOK, []fixtures.TodoList{})),
		mockroute.Methods(http.MethodGet))

	Navigate(t, mp.Page, env.BaseURL, "/todolist/")

	ExpectText(t, mp.Page, "#loading-indicator", "Loading...")
	WaitForHidden(t, mp.Page, "#loading-indicator")
	ExpectText(t, mp.Page, "#empty-message", "No TodoLists found.")
}

func TestBrowser_TodoListList_Table(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	mp := env.NewMockedPage(t)
	fixtures.MockCollection(mp.Router, fixtures.KindTodoList, []fixtures.TodoList{fixtures.SampleTodoList(1)}, 2)

	Navigate(t, mp.Page, env.BaseURL, "/todolist/")
	WaitForHidden(t, mp.Page, "#loading-indicator")

	WaitForSelector(t, mp.Page, "#todolist-table")
	ExpectText(t, mp.Page, "table", "Test List")
	ExpectText(t, mp.Page, "table", "/home/user/test")
}

func TestBrowser_TodoListList_Refresh(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	mp := env.NewMockedPage(t)

	refreshed := fixtures.SampleTodoList(1)
	refreshed.Name = "Refreshed List"
	refreshed.Workdir = "/home/user/refreshed"
	mp.Router.Register(todolistsPattern, mockroute.Sequence(
		mockroute.ResponseSpec{Status: http.StatusOK, JSON: []fixtures.TodoList{}},
		mockroute.ResponseSpec{Status: http.StatusOK, JSON: []fixtures.TodoList{refreshed}, Delay: 200 * time.Millisecond},
	), mockroute.Methods(http.MethodGet))

	Navigate(t, mp.Page, env.BaseURL, "/todolist/")
	ExpectText(t, mp.Page, "#empty-message", "No TodoLists found.")

	Click(t, mp.Page, "#refresh-button")
	WaitForSelector(t, mp.Page, "#loading-indicator")
	WaitForHidden(t, mp.Page, "#loading-indicator")

	WaitForSelector(t, mp.Page, "#todolist-table")
	ExpectText(t, mp.Page, "table", "Refreshed List")
	if n := mp.Router.CallCount(http.MethodGet, todolistsPattern); n != 2 {
		t.Errorf("GET %s served %d times, want 2", todolistsPattern, n)
	}
}

func TestBrowser_TodoListList_BackLink(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	mp := env.NewMockedPage(t)
	mp.Router.Register("**/api/**", mockroute.JSON(http.StatusOK, []any{}), mockroute.Methods(http.MethodGet), mockroute.Named("empty lists"))

	Navigate(t, mp.Page, env.BaseURL, "/todolist/")
	WaitForHidden(t, mp.Page, "#loading-indicator")

	Click(t, mp.Page, "#back-link")
	ExpectPath(t, mp.Page, "/")
}
