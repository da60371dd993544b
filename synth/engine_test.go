package synth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/autodoc/openapi"
	"github.com/vitalvas/autodoc/store"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemory()
	if cfg.BasePath == "" {
		cfg.BasePath = "/api"
	}
	e, err := New(st, cfg)
	require.NoError(t, err)
	return e, st
}

func currentOperation(t *testing.T, e *Engine, path, method string) *openapi.Operation {
	t.Helper()

	doc, err := e.CurrentDocument()
	require.NoError(t, err)
	op := doc.Operation(path, method)
	require.NotNil(t, op, "operation %s %s", method, path)
	return op
}

func createUserCatalog() *Catalog {
	return NewCatalog().Register("CreateUserRequest", map[string]string{
		"name": "required|string",
		"age":  "nullable|integer",
	})
}

func TestNew(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		_, err := New(nil, Config{})
		assert.ErrorIs(t, err, ErrNoStore)
	})

	t.Run("invalid global security", func(t *testing.T) {
		_, err := New(store.NewMemory(), Config{Security: "tokenAuth"})
		assert.ErrorIs(t, err, ErrInvalidSecurityIdentifier)
	})

	t.Run("run id", func(t *testing.T) {
		a, _ := newTestEngine(t, Config{})
		b, _ := newTestEngine(t, Config{})
		assert.NotEmpty(t, a.RunID())
		assert.NotEqual(t, a.RunID(), b.RunID())
	})
}

func TestEngineBeginOrResume(t *testing.T) {
	t.Run("initializes document", func(t *testing.T) {
		e, st := newTestEngine(t, Config{
			Servers:          []openapi.Server{{URL: "http://localhost", Description: "This app server URL"}},
			Info:             &openapi.Info{Title: "Users API", Version: "1.0.0"},
			CodeDescriptions: map[int]string{200: "Operation successfully done", 204: "Operation successfully done"},
			Security:         BearerAuth,
		})
		require.NoError(t, e.BeginOrResume())

		staged, err := st.LoadStaged()
		require.NoError(t, err)
		require.NotNil(t, staged)

		assert.Equal(t, DefaultOpenAPIVersion, staged.OpenAPI)
		assert.Equal(t, "Users API", staged.Info.Title)
		assert.Equal(t, "http://localhost", staged.Servers[0].URL)
		assert.Equal(t, "Operation successfully done", staged.Components.Responses["204"].Description)
		assert.Equal(t, "bearer", staged.Components.SecuritySchemes[BearerAuth].Scheme)
		assert.Empty(t, staged.Paths)
	})

	t.Run("resumes staged document", func(t *testing.T) {
		st := store.NewMemory()

		first, err := New(st, Config{BasePath: "/api"})
		require.NoError(t, err)
		require.NoError(t, first.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}))
		want, err := first.CurrentDocument()
		require.NoError(t, err)

		second, err := New(st, Config{BasePath: "/api"})
		require.NoError(t, err)
		require.NoError(t, second.BeginOrResume())
		got, err := second.CurrentDocument()
		require.NoError(t, err)

		assert.Empty(t, cmp.Diff(want, got))
	})

	t.Run("version override", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{OpenAPIVersion: "3.1.0"})
		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		assert.Equal(t, "3.1.0", doc.OpenAPI)
	})
}

func TestEngineScenarios(t *testing.T) {
	t.Run("path parameter without rules", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{})

		require.NoError(t, e.RecordExchange(&Exchange{
			Method:       "GET",
			Pattern:      "GET /api/users/{id}",
			Status:       200,
			ResponseBody: []byte(`{"id":1}`),
		}))

		op := currentOperation(t, e, "/api/users/{id}", "get")
		assert.Equal(t, []*openapi.Parameter{
			{In: "path", Name: "id", Required: true, Type: "string"},
		}, op.Parameters)
		assert.Equal(t, []string{"users"}, op.Tags)
		assert.Empty(t, op.Summary)
		assert.Empty(t, op.Description)
		assert.Empty(t, op.Security)
	})

	t.Run("shared schema for a state changing request", func(t *testing.T) {
		cat := createUserCatalog()
		e, _ := newTestEngine(t, Config{Rules: cat, Annotations: cat})

		ex := &Exchange{
			Method:       "POST",
			Pattern:      "POST /api/users",
			BoundTypes:   []string{"CreateUserRequest"},
			Payload:      map[string]any{"name": "Ann", "age": nil},
			Status:       201,
			ResponseBody: []byte(`{"id":1}`),
		}
		require.NoError(t, e.RecordExchange(ex))
		require.NoError(t, e.RecordExchange(ex))

		doc, err := e.CurrentDocument()
		require.NoError(t, err)

		schema := doc.Components.Parameters["UsersObject"]
		require.NotNil(t, schema)
		assert.Equal(t, "object", schema.Type)
		assert.Equal(t, "string", schema.Properties["name"].Type)
		assert.Equal(t, "integer", schema.Properties["age"].Type)
		assert.Equal(t, "required, string", schema.Properties["name"].Description)
		assert.Equal(t, []string{"name"}, schema.Required)

		example, err := json.Marshal(schema.Example)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Ann","age":0}`, string(example))

		op := doc.Operation("/api/users", "post")
		require.NotNil(t, op)

		var body []*openapi.Parameter
		for _, p := range op.Parameters {
			if p.In == "body" {
				body = append(body, p)
			}
		}
		require.Len(t, body, 1)
		assert.Equal(t, "#/components/parameters/UsersObject", body[0].Schema.Ref)
		assert.Equal(t, "create user request", op.Summary)
	})

	t.Run("responses per status code", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{})

		require.NoError(t, e.RecordExchange(&Exchange{
			Method: "GET", Pattern: "GET /api/users/{id}", Status: 200,
			ResponseBody: []byte(`{"id":1}`),
		}))
		require.NoError(t, e.RecordExchange(&Exchange{
			Method: "GET", Pattern: "GET /api/users/{id}", Status: 404,
			ResponseBody: []byte(`{"error":"not found"}`),
		}))

		op := currentOperation(t, e, "/api/users/{id}", "get")
		require.Len(t, op.Responses, 2)
		assert.Equal(t, "OK", op.Responses["200"].Description)
		assert.Equal(t, "Not Found", op.Responses["404"].Description)

		ok, err := json.Marshal(op.Responses["200"].Content["application/json"].Schema.Example)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":1}`, string(ok))

		missing, err := json.Marshal(op.Responses["404"].Content["application/json"].Schema.Example)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error":"not found"}`, string(missing))
	})

	t.Run("global security applied once", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{Security: BearerAuth})

		for range 3 {
			require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}))
		}

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		assert.Equal(t, "bearer", doc.Components.SecuritySchemes[BearerAuth].Scheme)
		assert.Equal(t, []openapi.SecurityRequirement{{BearerAuth: {}}}, doc.Operation("/api/users", "get").Security)
	})

	t.Run("invalid annotated security", func(t *testing.T) {
		cat := createUserCatalog().Annotate("CreateUserRequest", Bag{"security": "fooAuth"})
		e, _ := newTestEngine(t, Config{Rules: cat, Annotations: cat})

		err := e.RecordExchange(&Exchange{
			Method:     "POST",
			Pattern:    "POST /api/users",
			BoundTypes: []string{"CreateUserRequest"},
			Payload:    map[string]any{"name": "Ann"},
			Status:     201,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidSecurityIdentifier))
		assert.Contains(t, err.Error(), "fooAuth")
		assert.Contains(t, err.Error(), "bearerAuth, basicAuth, ApiKeyAuth")

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		assert.Empty(t, doc.Paths)
	})
}

func TestEngineRecordExchange(t *testing.T) {
	t.Run("operation created once", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{})
		ex := &Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}

		require.NoError(t, e.RecordExchange(ex))
		require.NoError(t, e.RecordExchange(ex))

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		require.Len(t, doc.Paths, 1)
		assert.Len(t, doc.Paths["/api/users"], 1)
		assert.Equal(t, []string{"users"}, doc.Paths["/api/users"]["get"].Tags)
	})

	t.Run("methods share a path", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{})

		require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}))
		require.NoError(t, e.RecordExchange(&Exchange{Method: "POST", Pattern: "POST /api/users", Status: 201}))

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		assert.Len(t, doc.Paths["/api/users"], 2)
	})

	t.Run("query parameters deduplicated", func(t *testing.T) {
		cat := NewCatalog().Register("ListUsersRequest", map[string]string{
			"page": "integer",
			"q":    "required|string",
		})
		e, _ := newTestEngine(t, Config{Rules: cat, Annotations: cat})
		ex := &Exchange{
			Method:     "GET",
			Pattern:    "GET /api/users",
			BoundTypes: []string{"ListUsersRequest"},
			Payload:    map[string]any{"q": "ann"},
			Status:     200,
		}

		require.NoError(t, e.RecordExchange(ex))
		require.NoError(t, e.RecordExchange(ex))

		op := currentOperation(t, e, "/api/users", "get")
		require.Len(t, op.Parameters, 2)
		assert.Equal(t, "page", op.Parameters[0].Name)
		assert.Equal(t, "query", op.Parameters[0].In)
		assert.False(t, op.Parameters[0].Required)
		assert.Equal(t, "q", op.Parameters[1].Name)
		assert.True(t, op.Parameters[1].Required)
		assert.Nil(t, op.RequestBody)
	})

	t.Run("fewer fields keep richer schema", func(t *testing.T) {
		cat := createUserCatalog()
		e, _ := newTestEngine(t, Config{Rules: cat})
		record := func(payload map[string]any) {
			require.NoError(t, e.RecordExchange(&Exchange{
				Method:     "POST",
				Pattern:    "POST /api/users",
				BoundTypes: []string{"CreateUserRequest"},
				Payload:    payload,
				Status:     201,
			}))
		}

		record(map[string]any{"name": "Ann", "age": 31})
		record(map[string]any{"name": "Bob"})

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		example, err := json.Marshal(doc.Components.Parameters["UsersObject"].Example)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Ann","age":31}`, string(example))

		record(map[string]any{"name": "Cy", "age": 40, "nickname": "c"})

		doc, err = e.CurrentDocument()
		require.NoError(t, err)
		example, err = json.Marshal(doc.Components.Parameters["UsersObject"].Example)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Cy","age":40,"nickname":"c"}`, string(example))
	})

	t.Run("fewer fields without rules keep richer example", func(t *testing.T) {
		e, st := newTestEngine(t, Config{})
		record := func(e *Engine, payload map[string]any) {
			require.NoError(t, e.RecordExchange(&Exchange{
				Method:     "POST",
				Pattern:    "POST /api/notes",
				BoundTypes: []string{"CreateNoteRequest"},
				Payload:    payload,
				Status:     201,
			}))
		}

		record(e, map[string]any{"a": 1, "b": 2})
		record(e, map[string]any{"a": 1})

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		example, err := json.Marshal(doc.Components.Parameters["NotesObject"].Example)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1,"b":2}`, string(example))

		resumed, err := New(st, Config{BasePath: "/api"})
		require.NoError(t, err)
		record(resumed, map[string]any{"c": 3})

		doc, err = resumed.CurrentDocument()
		require.NoError(t, err)
		example, err = json.Marshal(doc.Components.Parameters["NotesObject"].Example)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1,"b":2}`, string(example))
	})

	t.Run("more observed fields than before refresh the example", func(t *testing.T) {
		cat := createUserCatalog()
		e, _ := newTestEngine(t, Config{Rules: cat})
		record := func(payload map[string]any) {
			require.NoError(t, e.RecordExchange(&Exchange{
				Method:     "POST",
				Pattern:    "POST /api/users",
				BoundTypes: []string{"CreateUserRequest"},
				Payload:    payload,
				Status:     201,
			}))
		}

		record(map[string]any{"name": "Ann"})
		record(map[string]any{"name": "Bob", "age": nil})

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		schema := doc.Components.Parameters["UsersObject"]
		example, err := json.Marshal(schema.Example)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Bob","age":0}`, string(example))
		assert.Len(t, doc.Operation("/api/users", "post").Parameters, 1)
	})

	t.Run("non object payload passes through", func(t *testing.T) {
		cat := createUserCatalog()
		e, _ := newTestEngine(t, Config{Rules: cat})

		require.NoError(t, e.RecordExchange(&Exchange{
			Method:     "POST",
			Pattern:    "POST /api/users",
			BoundTypes: []string{"CreateUserRequest"},
			Payload:    "not json {",
			Status:     400,
		}))

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		assert.NotContains(t, doc.Components.Parameters, "UsersObject")
	})

	t.Run("default headers added once", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{Headers: map[string]string{"Accept-Language": "en"}})
		ex := &Exchange{Method: "GET", Pattern: "GET /api/users/{id}", Status: 200}

		require.NoError(t, e.RecordExchange(ex))
		require.NoError(t, e.RecordExchange(ex))

		op := currentOperation(t, e, "/api/users/{id}", "get")
		require.Len(t, op.Parameters, 2)
		header := op.Parameters[1]
		assert.Equal(t, "header", header.In)
		assert.Equal(t, "Accept-Language", header.Name)
		assert.True(t, header.Required)
		assert.Equal(t, "en", header.Schema.Default)
	})

	t.Run("security disabled by annotation", func(t *testing.T) {
		cat := createUserCatalog().Annotate("CreateUserRequest", Bag{"security": false})
		e, _ := newTestEngine(t, Config{Rules: cat, Annotations: cat, Security: BearerAuth})

		require.NoError(t, e.RecordExchange(&Exchange{
			Method: "POST", Pattern: "POST /api/users",
			BoundTypes: []string{"CreateUserRequest"}, Status: 201,
		}))

		assert.Empty(t, currentOperation(t, e, "/api/users", "post").Security)
	})

	t.Run("security overridden by annotation", func(t *testing.T) {
		cat := createUserCatalog().Annotate("CreateUserRequest", Bag{"security": APIKeyAuth})
		e, _ := newTestEngine(t, Config{Rules: cat, Annotations: cat, Security: BearerAuth})

		require.NoError(t, e.RecordExchange(&Exchange{
			Method: "POST", Pattern: "POST /api/users",
			BoundTypes: []string{"CreateUserRequest"}, Status: 201,
		}))

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		assert.Equal(t, []openapi.SecurityRequirement{{APIKeyAuth: {}}}, doc.Operation("/api/users", "post").Security)
		assert.Contains(t, doc.Components.SecuritySchemes, APIKeyAuth)
	})

	t.Run("annotations override summary and descriptions", func(t *testing.T) {
		cat := createUserCatalog().Annotate("CreateUserRequest", Bag{
			"summary":     "Create a user",
			"description": "Registers a new account",
			"_201":        "The user was created",
			"name":        "Display name",
		})
		e, _ := newTestEngine(t, Config{Rules: cat, Annotations: cat})

		require.NoError(t, e.RecordExchange(&Exchange{
			Method: "POST", Pattern: "POST /api/users",
			BoundTypes: []string{"CreateUserRequest"},
			Payload:    map[string]any{"name": "Ann"},
			Status:     201,
		}))

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		op := doc.Operation("/api/users", "post")
		assert.Equal(t, "Create a user", op.Summary)
		assert.Equal(t, "Registers a new account", op.Description)
		assert.Equal(t, "The user was created", op.Responses["201"].Description)
		assert.Equal(t, "Display name", doc.Components.Parameters["UsersObject"].Properties["name"].Description)
	})

	t.Run("configured response description", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{CodeDescriptions: map[int]string{422: "Validation error"}})

		require.NoError(t, e.RecordExchange(&Exchange{Method: "POST", Pattern: "POST /api/users", Status: 422}))

		assert.Equal(t, "Validation error", currentOperation(t, e, "/api/users", "post").Responses["422"].Description)
	})

	t.Run("request body content types", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{})

		require.NoError(t, e.RecordExchange(&Exchange{Method: "POST", Pattern: "POST /api/users", Status: 201}))
		require.NoError(t, e.RecordExchange(&Exchange{
			Method: "POST", Pattern: "POST /api/users", Status: 201,
			RequestContentType: "multipart/form-data; boundary=x",
		}))
		require.NoError(t, e.RecordExchange(&Exchange{Method: "PUT", Pattern: "PUT /api/users/{id}", Status: 200}))
		require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users/{id}", Status: 200}))

		doc, err := e.CurrentDocument()
		require.NoError(t, err)

		post := doc.Operation("/api/users", "post").RequestBody
		require.NotNil(t, post)
		assert.Len(t, post.Content, 2)
		assert.Contains(t, post.Content, "application/json")
		assert.Contains(t, post.Content, "multipart/form-data")

		put := doc.Operation("/api/users/{id}", "put").RequestBody
		require.NotNil(t, put)
		assert.Contains(t, put.Content, "application/x-www-form-urlencoded")

		assert.Nil(t, doc.Operation("/api/users/{id}", "get").RequestBody)
	})

	t.Run("binary response", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{})

		require.NoError(t, e.RecordExchange(&Exchange{
			Method: "GET", Pattern: "GET /api/users/{id}/avatar", Status: 200,
			ResponseContentType: "image/png",
			ResponseBody:        []byte{0x89, 0x50},
		}))

		doc, err := e.CurrentDocument()
		require.NoError(t, err)

		data, err := json.Marshal(doc.Operation("/api/users/{id}/avatar", "get").Responses)
		require.NoError(t, err)
		assert.JSONEq(t, `{"200":"*Unavailable for preview*"}`, string(data))
	})

	t.Run("staged after every capture", func(t *testing.T) {
		e, st := newTestEngine(t, Config{})

		require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}))

		staged, err := st.LoadStaged()
		require.NoError(t, err)
		assert.NotNil(t, staged.Operation("/api/users", "get"))
	})

	t.Run("snapshot is detached", func(t *testing.T) {
		e, _ := newTestEngine(t, Config{})
		require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}))

		snapshot, err := e.CurrentDocument()
		require.NoError(t, err)
		snapshot.Paths["/api/users"]["get"].Summary = "changed"

		assert.Empty(t, currentOperation(t, e, "/api/users", "get").Summary)
	})
}

func TestEngineCommit(t *testing.T) {
	t.Run("production missing before commit", func(t *testing.T) {
		_, st := newTestEngine(t, Config{})

		_, err := st.ReadProduction()
		assert.ErrorIs(t, err, store.ErrProductionMissing)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("commit writes production and resets", func(t *testing.T) {
		e, st := newTestEngine(t, Config{})
		require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}))

		require.NoError(t, e.Commit())

		prod, err := st.ReadProduction()
		require.NoError(t, err)
		assert.NotNil(t, prod.Operation("/api/users", "get"))

		staged, err := st.LoadStaged()
		require.NoError(t, err)
		assert.Nil(t, staged)

		doc, err := e.CurrentDocument()
		require.NoError(t, err)
		assert.Empty(t, doc.Paths)
	})

	t.Run("commit overwrites", func(t *testing.T) {
		e, st := newTestEngine(t, Config{})

		require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}))
		require.NoError(t, e.Commit())
		require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/orders", Status: 200}))
		require.NoError(t, e.Commit())

		prod, err := st.ReadProduction()
		require.NoError(t, err)
		assert.Nil(t, prod.Operation("/api/users", "get"))
		assert.NotNil(t, prod.Operation("/api/orders", "get"))
	})

	t.Run("discard", func(t *testing.T) {
		e, st := newTestEngine(t, Config{})
		require.NoError(t, e.RecordExchange(&Exchange{Method: "GET", Pattern: "GET /api/users", Status: 200}))

		require.NoError(t, e.Discard())

		staged, err := st.LoadStaged()
		require.NoError(t, err)
		assert.Nil(t, staged)

		_, err = st.ReadProduction()
		assert.ErrorIs(t, err, store.ErrProductionMissing)
	})
}
