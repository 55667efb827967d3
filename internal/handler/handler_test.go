package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dlanger/studyden/internal/auth"
	"github.com/dlanger/studyden/internal/database"
	"github.com/dlanger/studyden/internal/model"
	"github.com/dlanger/studyden/internal/schedule"
	"github.com/dlanger/studyden/internal/store"
)

type testEnv struct {
	users    *store.UserStore
	children *store.ChildStore
	tasks    *store.TaskStore
	logs     *store.StudyLogStore

	auth  *AuthHandler
	child *ChildHandler
	task  *TaskHandler
	log   *LogHandler

	owner    *model.User
	stranger *model.User
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		users:    store.NewUserStore(db),
		children: store.NewChildStore(db),
		tasks:    store.NewTaskStore(db),
		logs:     store.NewStudyLogStore(db),
	}
	env.auth = NewAuthHandler(env.users, []byte("test-secret"), time.Hour, logger)
	env.child = NewChildHandler(env.children, nil, logger)
	env.task = NewTaskHandler(env.tasks, env.children, nil, logger)
	env.log = NewLogHandler(env.logs, env.tasks, env.children, nil, logger)

	env.owner, err = env.users.Create("owner@example.com", "Owner", "hash")
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	env.stranger, err = env.users.Create("stranger@example.com", "Stranger", "hash")
	if err != nil {
		t.Fatalf("create stranger: %v", err)
	}
	return env
}

// request builds an authenticated request with path values already resolved,
// the way the router would hand it to the handler.
func request(userID, method, target string, body any, pathValues map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		r = r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: userID}))
	}
	for name, val := range pathValues {
		r.SetPathValue(name, val)
	}
	return r
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (env *testEnv) createChild(t *testing.T, userID, name string) *model.Child {
	t.Helper()
	child, err := env.children.Create(userID, name, "")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return child
}

func (env *testEnv) createTask(t *testing.T, userID, childID string, task model.Task) *model.Task {
	t.Helper()
	task.UserID = userID
	task.ChildID = childID
	created, err := env.tasks.Create(task)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return created
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupEnv(t)

	rec := httptest.NewRecorder()
	env.auth.Register(rec, request("", "POST", "/register", map[string]string{
		"email":    "New@Example.com",
		"name":     "New Parent",
		"password": "secret-pass",
	}, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201: %s", rec.Code, rec.Body)
	}
	reg := decode[map[string]string](t, rec)
	if reg["token"] == "" || reg["user_id"] == "" {
		t.Fatalf("register response missing token or user_id: %v", reg)
	}

	// Email is stored lowercased, so login with the canonical form works.
	rec = httptest.NewRecorder()
	env.auth.Login(rec, request("", "POST", "/login", map[string]string{
		"email":    "new@example.com",
		"password": "secret-pass",
	}, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	env.auth.Login(rec, request("", "POST", "/login", map[string]string{
		"email":    "new@example.com",
		"password": "wrong-pass",
	}, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupEnv(t)

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing email", map[string]string{"password": "long-enough"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "nope", "password": "long-enough"}, http.StatusBadRequest},
		{"short password", map[string]string{"email": "a@b.com", "password": "short"}, http.StatusBadRequest},
		{"duplicate email", map[string]string{"email": "owner@example.com", "password": "long-enough"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.auth.Register(rec, request("", "POST", "/register", tc.body, nil))
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestChildCRUD(t *testing.T) {
	env := setupEnv(t)

	rec := httptest.NewRecorder()
	env.child.Create(rec, request(env.owner.ID, "POST", "/api/children", map[string]string{"name": "Mika", "grade": "2nd"}, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	created := decode[model.Child](t, rec)
	if created.Name != "Mika" || created.Grade != "2nd" {
		t.Errorf("created child = %+v", created)
	}

	rec = httptest.NewRecorder()
	env.child.Get(rec, request(env.owner.ID, "GET", "/api/children/"+created.ID, nil, map[string]string{"id": created.ID}))
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	// Another account cannot see the child at all.
	rec = httptest.NewRecorder()
	env.child.Get(rec, request(env.stranger.ID, "GET", "/api/children/"+created.ID, nil, map[string]string{"id": created.ID}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.child.Delete(rec, request(env.owner.ID, "DELETE", "/api/children/"+created.ID, nil, map[string]string{"id": created.ID}))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.child.List(rec, request(env.owner.ID, "GET", "/api/children", nil, nil))
	children := decode[[]model.Child](t, rec)
	if len(children) != 0 {
		t.Errorf("deactivated child still listed: %v", children)
	}
}

func TestTaskCreateValidation(t *testing.T) {
	env := setupEnv(t)
	child := env.createChild(t, env.owner.ID, "Mika")
	pv := map[string]string{"child_id": child.ID}

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"subject": "Math", "default_minutes": 20, "days_mask": 31}},
		{"missing subject", map[string]any{"name": "Drills", "default_minutes": 20, "days_mask": 31}},
		{"zero minutes", map[string]any{"name": "Drills", "subject": "Math", "default_minutes": 0, "days_mask": 31}},
		{"mask too small", map[string]any{"name": "Drills", "subject": "Math", "default_minutes": 20, "days_mask": 0}},
		{"mask too big", map[string]any{"name": "Drills", "subject": "Math", "default_minutes": 20, "days_mask": 128}},
		{"inverted dates", map[string]any{"name": "Drills", "subject": "Math", "default_minutes": 20, "days_mask": 31, "start_date": "2026-04-10", "end_date": "2026-04-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.task.Create(rec, request(env.owner.ID, "POST", "/api/children/"+child.ID+"/tasks", tc.body, pv))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestTaskPatchDates(t *testing.T) {
	env := setupEnv(t)
	child := env.createChild(t, env.owner.ID, "Mika")
	task := env.createTask(t, env.owner.ID, child.ID, model.Task{
		Name: "Reading", Subject: "English", DefaultMinutes: 20, DaysMask: 31,
	})
	pv := map[string]string{"child_id": child.ID, "id": task.ID}

	// Set a start date, leave end date untouched.
	rec := httptest.NewRecorder()
	env.task.Patch(rec, request(env.owner.ID, "PATCH", "/t", map[string]any{"start_date": "2026-04-01"}, pv))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[model.Task](t, rec)
	if got.StartDate == nil || got.StartDate.String() != "2026-04-01" {
		t.Errorf("start date = %v, want 2026-04-01", got.StartDate)
	}

	// Explicit null clears it.
	rec = httptest.NewRecorder()
	env.task.Patch(rec, request(env.owner.ID, "PATCH", "/t", map[string]any{"start_date": nil}, pv))
	got = decode[model.Task](t, rec)
	if got.StartDate != nil {
		t.Errorf("start date = %v, want cleared", got.StartDate)
	}

	// A patch that would invert the range is rejected.
	rec = httptest.NewRecorder()
	env.task.Patch(rec, request(env.owner.ID, "PATCH", "/t", map[string]any{"start_date": "2026-05-01", "end_date": "2026-04-01"}, pv))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted patch status = %d, want 400", rec.Code)
	}
}

func TestTaskDeleteArchives(t *testing.T) {
	env := setupEnv(t)
	child := env.createChild(t, env.owner.ID, "Mika")
	task := env.createTask(t, env.owner.ID, child.ID, model.Task{
		Name: "Reading", Subject: "English", DefaultMinutes: 20, DaysMask: 127,
	})
	pv := map[string]string{"child_id": child.ID, "id": task.ID}

	rec := httptest.NewRecorder()
	env.task.Delete(rec, request(env.owner.ID, "DELETE", "/t", nil, pv))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body)
	}

	// Archived tasks drop out of the default listing but stay addressable.
	rec = httptest.NewRecorder()
	env.task.List(rec, request(env.owner.ID, "GET", "/api/children/"+child.ID+"/tasks", nil, map[string]string{"child_id": child.ID}))
	if tasks := decode[[]model.Task](t, rec); len(tasks) != 0 {
		t.Errorf("archived task still in default list: %v", tasks)
	}

	rec = httptest.NewRecorder()
	env.task.Get(rec, request(env.owner.ID, "GET", "/t", nil, pv))
	if rec.Code != http.StatusOK {
		t.Errorf("archived get status = %d, want 200", rec.Code)
	}
}

func TestReorderForeignTask(t *testing.T) {
	env := setupEnv(t)
	child := env.createChild(t, env.owner.ID, "Mika")
	other := env.createChild(t, env.owner.ID, "Theo")
	mine := env.createTask(t, env.owner.ID, child.ID, model.Task{
		Name: "Reading", Subject: "English", DefaultMinutes: 20, DaysMask: 127,
	})
	foreign := env.createTask(t, env.owner.ID, other.ID, model.Task{
		Name: "Math", Subject: "Math", DefaultMinutes: 15, DaysMask: 127,
	})

	rec := httptest.NewRecorder()
	env.task.Reorder(rec, request(env.owner.ID, "PUT", "/sort", map[string]any{
		"task_ids": []string{mine.ID, foreign.ID},
	}, map[string]string{"child_id": child.ID}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("reorder with foreign id status = %d, want 404", rec.Code)
	}
}

func TestReplaceDayAndDailyView(t *testing.T) {
	env := setupEnv(t)
	child := env.createChild(t, env.owner.ID, "Mika")
	reading := env.createTask(t, env.owner.ID, child.ID, model.Task{
		Name: "Reading", Subject: "English", DefaultMinutes: 20, DaysMask: 127,
	})
	math := env.createTask(t, env.owner.ID, child.ID, model.Task{
		Name: "Drills", Subject: "Math", DefaultMinutes: 15, DaysMask: 127,
	})

	const day = "2026-03-09"
	pv := map[string]string{"child_id": child.ID, "date": day}

	// Before logging, both tasks are open with their default minutes.
	rec := httptest.NewRecorder()
	env.log.Daily(rec, request(env.owner.ID, "GET", "/daily", nil, pv))
	if rec.Code != http.StatusOK {
		t.Fatalf("daily status = %d: %s", rec.Code, rec.Body)
	}
	view := decode[schedule.DailyView](t, rec)
	if len(view.Tasks) != 2 {
		t.Fatalf("daily tasks = %d, want 2", len(view.Tasks))
	}
	for _, item := range view.Tasks {
		if item.IsDone {
			t.Errorf("task %s done before any log", item.Name)
		}
	}

	rec = httptest.NewRecorder()
	env.log.ReplaceDay(rec, request(env.owner.ID, "PUT", "/logs", map[string]any{
		"logs": []map[string]any{{"task_id": reading.ID, "minutes": 35}},
	}, pv))
	if rec.Code != http.StatusOK {
		t.Fatalf("replace status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[map[string]any](t, rec)
	if resp["saved_count"] != float64(1) {
		t.Errorf("saved_count = %v, want 1", resp["saved_count"])
	}

	rec = httptest.NewRecorder()
	env.log.Daily(rec, request(env.owner.ID, "GET", "/daily", nil, pv))
	view = decode[schedule.DailyView](t, rec)
	for _, item := range view.Tasks {
		switch item.TaskID {
		case reading.ID:
			if !item.IsDone || item.Minutes != 35 {
				t.Errorf("reading = done:%v minutes:%d, want done with 35", item.IsDone, item.Minutes)
			}
		case math.ID:
			if item.IsDone {
				t.Error("math marked done without a log")
			}
			if item.Minutes != 15 {
				t.Errorf("math minutes = %d, want default 15", item.Minutes)
			}
		}
	}
}

func TestReplaceDayValidation(t *testing.T) {
	env := setupEnv(t)
	child := env.createChild(t, env.owner.ID, "Mika")
	task := env.createTask(t, env.owner.ID, child.ID, model.Task{
		Name: "Reading", Subject: "English", DefaultMinutes: 20, DaysMask: 127,
	})
	pv := map[string]string{"child_id": child.ID, "date": "2026-03-09"}

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"zero minutes", map[string]any{"logs": []map[string]any{{"task_id": task.ID, "minutes": 0}}}, http.StatusBadRequest},
		{"duplicate task", map[string]any{"logs": []map[string]any{
			{"task_id": task.ID, "minutes": 10},
			{"task_id": task.ID, "minutes": 20},
		}}, http.StatusBadRequest},
		{"unknown task", map[string]any{"logs": []map[string]any{{"task_id": "b2f9dc3e-0000-0000-0000-000000000000", "minutes": 10}}}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.log.ReplaceDay(rec, request(env.owner.ID, "PUT", "/logs", tc.body, pv))
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body)
			}
		})
	}

	rec := httptest.NewRecorder()
	env.log.ReplaceDay(rec, request(env.owner.ID, "PUT", "/logs", map[string]any{
		"logs": []map[string]any{},
	}, map[string]string{"child_id": child.ID, "date": "not-a-date"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
}

func TestCalendarEndpoint(t *testing.T) {
	env := setupEnv(t)
	child := env.createChild(t, env.owner.ID, "Mika")
	task := env.createTask(t, env.owner.ID, child.ID, model.Task{
		Name: "Reading", Subject: "English", DefaultMinutes: 20, DaysMask: 127,
	})

	day := model.Today().AddDays(-3)
	if _, err := env.logs.ReplaceForDate(env.owner.ID, child.ID, day, []store.LogItem{{TaskID: task.ID, Minutes: 20}}); err != nil {
		t.Fatalf("replace logs: %v", err)
	}

	from, to := day.AddDays(-1), day.AddDays(1)
	target := "/calendar?from=" + from.String() + "&to=" + to.String()
	rec := httptest.NewRecorder()
	env.log.Calendar(rec, request(env.owner.ID, "GET", target, nil, map[string]string{"child_id": child.ID}))
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar status = %d: %s", rec.Code, rec.Body)
	}
	cal := decode[schedule.Calendar](t, rec)
	if len(cal.Days) != 3 {
		t.Fatalf("calendar days = %d, want 3", len(cal.Days))
	}
	if cal.Days[1].Status != schedule.StatusGreen {
		t.Errorf("logged day status = %s, want green", cal.Days[1].Status)
	}
	if cal.Days[0].Status != schedule.StatusRed || cal.Days[2].Status != schedule.StatusRed {
		t.Errorf("unlogged past days = %s/%s, want red", cal.Days[0].Status, cal.Days[2].Status)
	}

	// Inverted and oversized ranges are rejected before any engine work.
	rec = httptest.NewRecorder()
	env.log.Calendar(rec, request(env.owner.ID, "GET", "/calendar?from=2026-03-10&to=2026-03-01", nil, map[string]string{"child_id": child.ID}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", rec.Code)
	}
	rec = httptest.NewRecorder()
	env.log.Calendar(rec, request(env.owner.ID, "GET", "/calendar?from=2026-01-01&to=2026-12-31", nil, map[string]string{"child_id": child.ID}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized range status = %d, want 400", rec.Code)
	}
}

func TestSummaryIncludesArchived(t *testing.T) {
	env := setupEnv(t)
	child := env.createChild(t, env.owner.ID, "Mika")
	task := env.createTask(t, env.owner.ID, child.ID, model.Task{
		Name: "Reading", Subject: "English", DefaultMinutes: 20, DaysMask: 127,
	})

	day, err := model.ParseDate("2026-03-09")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.logs.ReplaceForDate(env.owner.ID, child.ID, day, []store.LogItem{{TaskID: task.ID, Minutes: 30}}); err != nil {
		t.Fatalf("replace logs: %v", err)
	}

	archived := true
	if _, err := env.tasks.Patch(task.ID, child.ID, env.owner.ID, store.TaskPatch{IsArchived: &archived}); err != nil {
		t.Fatalf("archive task: %v", err)
	}

	rec := httptest.NewRecorder()
	env.log.Summary(rec, request(env.owner.ID, "GET", "/summary?from=2026-03-01&to=2026-03-31", nil, map[string]string{"child_id": child.ID}))
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d: %s", rec.Code, rec.Body)
	}
	sum := decode[schedule.Summary](t, rec)
	if sum.TotalMinutes != 30 {
		t.Errorf("total minutes = %d, want 30", sum.TotalMinutes)
	}
	if len(sum.ByTask) != 1 || sum.ByTask[0].Name != "Reading" {
		t.Errorf("by_task = %+v, want archived Reading attributed", sum.ByTask)
	}
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	env := setupEnv(t)

	rec := httptest.NewRecorder()
	env.child.Get(rec, request(env.owner.ID, "GET", "/api/children/nope", nil, map[string]string{"id": "nope"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("malformed child id status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.log.Daily(rec, request(env.owner.ID, "GET", "/daily", nil, map[string]string{"child_id": "also-nope", "date": "2026-03-09"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("malformed child id on daily status = %d, want 404", rec.Code)
	}
}
