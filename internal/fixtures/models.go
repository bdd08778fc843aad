// Package fixtures holds canned records and route bundles for the todo
// frontend's four REST resources.
package fixtures

import "strconv"

// Todo status values.
const (
	StatusWaiting   = "waiting"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// CSRF cookie the frontend echoes back as X-CSRFToken on mutating requests.
const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
	CSRFToken      = "test-csrf-token"
)

// DefaultAgentCommand is what the create form pre-fills.
const DefaultAgentCommand = "goose run --recipe"

const (
	createdAt = "2024-01-01T00:00:00Z"
	updatedAt = "2024-01-02T00:00:00Z"
)

type Agent struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	SystemMessage string `json:"system_message"`
	Command       string `json:"command"`
	Extensions    []int  `json:"extensions,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type Extension struct {
	ID        int               `json:"id"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Cmd       string            `json:"cmd"`
	Args      []string          `json:"args"`
	Envs      map[string]string `json:"envs"`
	Timeout   int               `json:"timeout"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

type TodoList struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Workdir   string `json:"workdir"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Todo mirrors the todo serializer. Nullable fields are pointers so a
// fixture can send an explicit null.
type Todo struct {
	ID                int      `json:"id"`
	TodoList          int      `json:"todo_list"`
	TodoListName      string   `json:"todo_list_name"`
	Workdir           string   `json:"workdir,omitempty"`
	Agent             *int     `json:"agent"`
	AgentName         *string  `json:"agent_name"`
	Title             string   `json:"title"`
	Prompt            string   `json:"prompt"`
	Context           string   `json:"context"`
	RefFiles          []string `json:"ref_files"`
	EditFiles         []string `json:"edit_files"`
	Status            string   `json:"status"`
	Output            *string  `json:"output"`
	ValidationCommand string   `json:"validation_command"`
	Timeout           int      `json:"timeout"`
	BranchName        string   `json:"branch_name"`
	AutoStash         bool     `json:"auto_stash"`
	KeepBranch        bool     `json:"keep_branch"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
	StartedAt         *string  `json:"started_at"`
	FinishedAt        *string  `json:"finished_at"`
}

func SampleAgent(id int) Agent {
	return Agent{
		ID:            id,
		Name:          "Test Agent",
		SystemMessage: "You are a helpful assistant.",
		Command:       DefaultAgentCommand,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

func SampleExtension(id int) Extension {
	return Extension{
		ID:        id,
		Name:      "Test Extension",
		Type:      "stdio",
		Cmd:       "command",
		Args:      []string{"arg1"},
		Envs:      map[string]string{"KEY": "value"},
		Timeout:   30,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func SampleTodoList(id int) TodoList {
	return TodoList{
		ID:        id,
		Name:      "Test List",
		Workdir:   "/home/user/test",
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func SampleTodo(id int) Todo {
	agent := 1
	agentName := "Test Agent"
	return Todo{
		ID:           id,
		TodoList:     1,
		TodoListName: "Test TodoList",
		Agent:        &agent,
		AgentName:    &agentName,
		Title:        "Test Title",
		Prompt:       "Test prompt",
		Context:      "Test context",
		RefFiles:     []string{"file1.txt", "file2.txt"},
		EditFiles:    []string{"file3.txt"},
		Status:       StatusWaiting,
		Timeout:      300,
		BranchName:   "test-branch",
		AutoStash:    true,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

// Kind names one REST resource.
type Kind string

const (
	KindAgent     Kind = "agents"
	KindExtension Kind = "extensions"
	KindTodo      Kind = "todos"
	KindTodoList  Kind = "todolists"
)

// CollectionPath is the list/create endpoint, e.g. /api/agents/.
func (k Kind) CollectionPath() string {
	return "/api/" + string(k) + "/"
}

// DetailPath is the retrieve/update/delete endpoint, e.g. /api/agents/1/.
func (k Kind) DetailPath(id int) string {
	return k.CollectionPath() + strconv.Itoa(id) + "/"
}

// PagePath is the frontend page for a resource, e.g. /agent/1/.
func (k Kind) PagePath(id int) string {
	singular := map[Kind]string{
		KindAgent:     "agent",
		KindExtension: "extension",
		KindTodo:      "todo",
		KindTodoList:  "todolist",
	}[k]
	if id <= 0 {
		return "/" + singular + "/"
	}
	return "/" + singular + "/" + strconv.Itoa(id) + "/"
}

// Page is the paginated envelope the todo list endpoint returns.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// SinglePage wraps records as the only page of results.
func SinglePage[T any](records ...T) Page[T] {
	if records == nil {
		records = []T{}
	}
	return Page[T]{Count: len(records), Results: records}
}
