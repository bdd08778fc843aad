package browser

import (
	"net/http"
	"sync"
	"testing"

	"github.com/kuitang/todo-e2e/internal/fixtures"
	"github.com/kuitang/todo-e2e/internal/mockroute"
)

func TestBrowser_TodoListCreate_EmptyForm(t *testing.T) {
	env, mp := newTodoListPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/todolist/create")
	ExpectPath(t, mp.Page, "/todolist/create/")

	ExpectValue(t, mp.Page, "#workdir", "")
	ExpectText(t, mp.Page, `button[type="submit"]`, "Create")
}

func TestBrowser_TodoListCreate_RedirectsToList(t *testing.T) {
	env, mp := newTodoListPage(t)
	csrf := CaptureCSRF(mp.Router, todolistsPattern)

	Navigate(t, mp.Page, env.BaseURL, "/todolist/create")
	Fill(t, mp.Page, "#workdir", "/home/user/test")
	Click(t, mp.Page, `button[type="submit"]`)

	ExpectPath(t, mp.Page, "/todolist/")
	if n := mp.Router.CallCount(http.MethodPost, todolistsPattern); n != 1 {
		t.Errorf("POST %s served %d times, want 1", todolistsPattern, n)
	}
	ExpectCSRFHeader(t, csrf())
}

func TestBrowser_TodoListCreate_CancelGoesToList(t *testing.T) {
	env, mp := newTodoListPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/todolist/create")
	Click(t, mp.Page, `a:has-text("Cancel")`)
	ExpectPath(t, mp.Page, "/todolist/")
}

func TestBrowser_TodoListCreate_ServerError(t *testing.T) {
	env, mp := newTodoListPage(t)
	mp.Router.Register(todolistsPattern, mockroute.ServerError("Internal server error"), mockroute.Methods(http.MethodPost))

	Navigate(t, mp.Page, env.BaseURL, "/todolist/create")
	Fill(t, mp.Page, "#workdir", "/home/user/test")
	Click(t, mp.Page, `button[type="submit"]`)

	ExpectText(t, mp.Page, `button[type="submit"]`, "Create")
	ExpectText(t, mp.Page, "#error-message", "Internal server error")
}

func TestBrowser_TodoListUpdate_PrefillsCurrentValues(t *testing.T) {
	env, mp := newTodoListPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/todolist/1/update")
	ExpectPath(t, mp.Page, "/todolist/1/update")

	ExpectValue(t, mp.Page, "#name", "Test List")
	ExpectValue(t, mp.Page, "#workdir", "/home/user/test")
	WaitForSelector(t, mp.Page, `button[type="submit"]`)

	env.MatchHTMLSnapshot(t, mp.Page, "main", "todolists/update.html")
}

func TestBrowser_TodoListUpdate_SubmitsAndRedirects(t *testing.T) {
	env, mp := newTodoListPage(t)

	var mu sync.Mutex
	var submitted []fixtures.TodoList
	mp.Router.Register(todolistDetailPattern, func(req *mockroute.Request) (mockroute.ResponseSpec, error) {
		var list fixtures.TodoList
		if err := req.DecodeJSON(&list); err != nil {
			return mockroute.ResponseSpec{}, err
		}
		mu.Lock()
		submitted = append(submitted, list)
		mu.Unlock()
		list.ID = 1
		return mockroute.ResponseSpec{Status: http.StatusOK, JSON: list}, nil
	}, mockroute.Methods(http.MethodPut, http.MethodPatch), mockroute.Named("todolist update"))
	csrf := CaptureCSRF(mp.Router, todolistDetailPattern)

	Navigate(t, mp.Page, env.BaseURL, "/todolist/1/update")
	ExpectValue(t, mp.Page, "#name", "Test List")
	Fill(t, mp.Page, "#name", "Updated Name")
	Click(t, mp.Page, `button[type="submit"]`)

	ExpectPath(t, mp.Page, "/todolist/1/")

	mu.Lock()
	defer mu.Unlock()
	if len(submitted) != 1 {
		t.Fatalf("update submitted %d times, want 1", len(submitted))
	}
	if submitted[0].Name != "Updated Name" || submitted[0].Workdir != "/home/user/test" {
		t.Errorf("submitted %+v, want the edited name and the unchanged workdir", submitted[0])
	}
	ExpectCSRFHeader(t, csrf())
}

func TestBrowser_TodoListUpdate_CancelGoesToDetail(t *testing.T) {
	env, mp := newTodoListPage(t)

	Navigate(t, mp.Page, env.BaseURL, "/todolist/1/update")
	ExpectValue(t, mp.Page, "#name", "Test List")
	Click(t, mp.Page, `a[href="/todolist/1/"]`)
	ExpectPath(t, mp.Page, "/todolist/1/")
}

func TestBrowser_TodoListUpdate_LoadError(t *testing.T) {
	env, mp := newTodoListPage(t)
	mp.Router.Register(todolistDetailPattern, mockroute.ServerError("Server Error"), mockroute.Methods(http.MethodGet))

	Navigate(t, mp.Page, env.BaseURL, "/todolist/1/update")

	ExpectText(t, mp.Page, ".bg-red-100", "Server Error")
}

func TestBrowser_TodoListUpdate_ServerError(t *testing.T) {
	env, mp := newTodoListPage(t)
	mp.Router.Register(todolistDetailPattern, mockroute.ServerError("Internal Server Error"), mockroute.Methods(http.MethodPut, http.MethodPatch))

	Navigate(t, mp.Page, env.BaseURL, "/todolist/1/update")
	ExpectValue(t, mp.Page, "#name", "Test List")
	Click(t, mp.Page, `button[type="submit"]`)

	WaitForSelector(t, mp.Page, `text=Internal Server Error`)
	ExpectPath(t, mp.Page, "/todolist/1/update")
}
