package fixtures

import (
	"net/http"
	"strconv"

	"github.com/kuitang/todo-e2e/internal/mockroute"
)

func glob(path string) string {
	return "**" + path
}

// MockResource serves one record at its detail endpoint: GET returns it,
// PUT and PATCH echo the submitted fields over it, DELETE answers 200 with
// an empty body.
func MockResource(r *mockroute.Router, kind Kind, id int, record any) *mockroute.Rule {
	return r.Register(glob(kind.DetailPath(id)), mockroute.ByMethod(map[string]mockroute.Handler{
		http.MethodGet:    mockroute.JSON(http.StatusOK, record),
		http.MethodPut:    mockroute.Echo(http.StatusOK, record),
		http.MethodPatch:  mockroute.Echo(http.StatusOK, record),
		http.MethodDelete: mockroute.Empty(http.StatusOK),
	}), mockroute.Named(string(kind)+" "+strconv.Itoa(id)))
}

// MockCollection serves a list endpoint: GET returns records, POST echoes
// the submitted record with status 201 and id next.
func MockCollection[T any](r *mockroute.Router, kind Kind, records []T, next int) *mockroute.Rule {
	if records == nil {
		records = []T{}
	}
	return r.Register(glob(kind.CollectionPath()), mockroute.ByMethod(map[string]mockroute.Handler{
		http.MethodGet:  mockroute.JSON(http.StatusOK, records),
		http.MethodPost: mockroute.Echo(http.StatusCreated, map[string]any{"id": next}),
	}), mockroute.Named(string(kind)+" collection"))
}

// MockTodoListDetailAPIs registers everything the todo list detail page
// loads: the list, its branches and worktrees, and its todos.
func MockTodoListDetailAPIs(r *mockroute.Router, id int) {
	detail := KindTodoList.DetailPath(id)
	r.Register(glob(detail), mockroute.JSON(http.StatusOK, SampleTodoList(id)), mockroute.Methods(http.MethodGet))
	r.Register(glob(detail+"branches/"), mockroute.JSON(http.StatusOK, map[string]any{"branches": []string{}}))
	r.Register(glob(detail+"worktrees/"), mockroute.JSON(http.StatusOK, map[string]any{"worktrees": []string{}}))
	r.Register("**/api/todos**", mockroute.JSON(http.StatusOK, []Todo{}), mockroute.Methods(http.MethodGet))
}

// MockTodoDetailAPIs registers everything the todo detail page loads.
func MockTodoDetailAPIs(r *mockroute.Router, id int) {
	detail := KindTodo.DetailPath(id)
	r.Register(glob(detail), mockroute.JSON(http.StatusOK, SampleTodo(id)), mockroute.Methods(http.MethodGet))
	r.Register(glob(detail+"branches/"), mockroute.JSON(http.StatusOK, map[string]any{"branches": []string{}}))
	r.Register(glob(detail+"worktrees/"), mockroute.JSON(http.StatusOK, map[string]any{"worktrees": []string{}}))
}
