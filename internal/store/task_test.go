package store

import (
	"errors"
	"testing"

	"github.com/dlanger/studyden/internal/database"
	"github.com/dlanger/studyden/internal/model"
)

type taskFixture struct {
	tasks    *TaskStore
	children *ChildStore
	users    *UserStore
	logs     *StudyLogStore
	owner    *model.User
	child    *model.Child
}

func setupTaskTestDB(t *testing.T) *taskFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &taskFixture{
		tasks:    NewTaskStore(db),
		children: NewChildStore(db),
		users:    NewUserStore(db),
		logs:     NewStudyLogStore(db),
	}
	f.owner = createTestUser(t, f.users, "parent@example.com")
	f.child, err = f.children.Create(f.owner.ID, "Ada", "3rd")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return f
}

func (f *taskFixture) createTask(t *testing.T, name, subject string, mask int) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(model.Task{
		UserID:         f.owner.ID,
		ChildID:        f.child.ID,
		Name:           name,
		Subject:        subject,
		DefaultMinutes: 20,
		DaysMask:       mask,
	})
	if err != nil {
		t.Fatalf("create task %q: %v", name, err)
	}
	return task
}

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestTaskCreateAndGet(t *testing.T) {
	f := setupTaskTestDB(t)
	start := mustDate(t, "2026-01-10")

	task, err := f.tasks.Create(model.Task{
		UserID:         f.owner.ID,
		ChildID:        f.child.ID,
		Name:           "Reading",
		Subject:        "English",
		Description:    "20 pages",
		DefaultMinutes: 20,
		DaysMask:       1 | 4,
		StartDate:      &start,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID == "" {
		t.Error("task id not assigned")
	}
	if task.DaysMask != 5 {
		t.Errorf("days_mask = %d, want 5", task.DaysMask)
	}
	if task.StartDate == nil || task.StartDate.String() != "2026-01-10" {
		t.Errorf("start_date = %v, want 2026-01-10", task.StartDate)
	}
	if task.EndDate != nil {
		t.Errorf("end_date = %v, want nil", task.EndDate)
	}
	if task.IsArchived {
		t.Error("new task should not be archived")
	}
}

func TestTaskListOrdering(t *testing.T) {
	f := setupTaskTestDB(t)
	f.createTask(t, "Workbook", "Math", 1)
	f.createTask(t, "Essay", "English", 1)
	f.createTask(t, "Reading", "English", 1)

	tasks, err := f.tasks.ListByChild(f.child.ID, f.owner.ID, false)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	want := []string{"Essay", "Reading", "Workbook"} // subject asc, then name asc
	if len(tasks) != 3 {
		t.Fatalf("task count = %d, want 3", len(tasks))
	}
	for i, name := range want {
		if tasks[i].Name != name {
			t.Errorf("tasks[%d] = %q, want %q", i, tasks[i].Name, name)
		}
	}
}

func TestTaskListExcludesArchived(t *testing.T) {
	f := setupTaskTestDB(t)
	task := f.createTask(t, "Reading", "English", 1)

	archived := true
	if _, err := f.tasks.Patch(task.ID, f.child.ID, f.owner.ID, TaskPatch{IsArchived: &archived}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	active, err := f.tasks.ListByChild(f.child.ID, f.owner.ID, false)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active count = %d, want 0", len(active))
	}

	all, err := f.tasks.ListByChild(f.child.ID, f.owner.ID, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("all count = %d, want 1", len(all))
	}
}

func TestTaskPatchLeavesUnsetFieldsAlone(t *testing.T) {
	f := setupTaskTestDB(t)
	task := f.createTask(t, "Reading", "English", 3)

	minutes := 45
	patched, err := f.tasks.Patch(task.ID, f.child.ID, f.owner.ID, TaskPatch{DefaultMinutes: &minutes})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.DefaultMinutes != 45 {
		t.Errorf("default_minutes = %d, want 45", patched.DefaultMinutes)
	}
	if patched.Name != "Reading" || patched.Subject != "English" || patched.DaysMask != 3 {
		t.Errorf("untouched fields changed: %+v", patched)
	}
}

func TestTaskPatchDateTriState(t *testing.T) {
	f := setupTaskTestDB(t)
	task := f.createTask(t, "Reading", "English", 1)

	start := mustDate(t, "2026-02-01")
	patched, err := f.tasks.Patch(task.ID, f.child.ID, f.owner.ID, TaskPatch{
		StartDate: OptDate{Set: true, Date: &start},
	})
	if err != nil {
		t.Fatalf("set start_date: %v", err)
	}
	if patched.StartDate == nil || patched.StartDate.String() != "2026-02-01" {
		t.Fatalf("start_date = %v, want 2026-02-01", patched.StartDate)
	}

	// A patch that does not mention start_date leaves it as is.
	name := "Reading aloud"
	patched, err = f.tasks.Patch(task.ID, f.child.ID, f.owner.ID, TaskPatch{Name: &name})
	if err != nil {
		t.Fatalf("unrelated patch: %v", err)
	}
	if patched.StartDate == nil {
		t.Fatal("unrelated patch cleared start_date")
	}

	// Explicit null clears it.
	patched, err = f.tasks.Patch(task.ID, f.child.ID, f.owner.ID, TaskPatch{
		StartDate: OptDate{Set: true},
	})
	if err != nil {
		t.Fatalf("clear start_date: %v", err)
	}
	if patched.StartDate != nil {
		t.Errorf("start_date = %v, want nil after clear", patched.StartDate)
	}
}

func TestTaskPatchRejectsInvertedDates(t *testing.T) {
	f := setupTaskTestDB(t)
	task := f.createTask(t, "Reading", "English", 1)

	start := mustDate(t, "2026-02-10")
	end := mustDate(t, "2026-02-01")
	_, err := f.tasks.Patch(task.ID, f.child.ID, f.owner.ID, TaskPatch{
		StartDate: OptDate{Set: true, Date: &start},
		EndDate:   OptDate{Set: true, Date: &end},
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("error = %v, want ErrInvalidDateRange", err)
	}
}

func TestTaskCrossTenantGetIsNil(t *testing.T) {
	f := setupTaskTestDB(t)
	task := f.createTask(t, "Reading", "English", 1)
	other := createTestUser(t, f.users, "other@example.com")

	got, err := f.tasks.GetByID(task.ID, f.child.ID, other.ID)
	if err != nil {
		t.Fatalf("cross-tenant get: %v", err)
	}
	if got != nil {
		t.Error("another user's task should be indistinguishable from absent")
	}
}

func TestTaskUpdateSortOrder(t *testing.T) {
	f := setupTaskTestDB(t)
	a := f.createTask(t, "A", "Math", 1)
	b := f.createTask(t, "B", "Math", 1)
	c := f.createTask(t, "C", "Math", 1)

	if err := f.tasks.UpdateSortOrder(f.child.ID, f.owner.ID, []string{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("update sort order: %v", err)
	}

	tasks, err := f.tasks.ListByChild(f.child.ID, f.owner.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"C", "A", "B"}
	for i, name := range want {
		if tasks[i].Name != name {
			t.Errorf("tasks[%d] = %q, want %q", i, tasks[i].Name, name)
		}
	}
}

func TestTaskUpdateSortOrderRejectsForeignIDs(t *testing.T) {
	f := setupTaskTestDB(t)
	a := f.createTask(t, "A", "Math", 1)

	otherChild, err := f.children.Create(f.owner.ID, "Ben", "")
	if err != nil {
		t.Fatalf("create second child: %v", err)
	}
	foreign, err := f.tasks.Create(model.Task{
		UserID: f.owner.ID, ChildID: otherChild.ID,
		Name: "X", Subject: "Math", DefaultMinutes: 10, DaysMask: 1,
	})
	if err != nil {
		t.Fatalf("create foreign task: %v", err)
	}

	err = f.tasks.UpdateSortOrder(f.child.ID, f.owner.ID, []string{a.ID, foreign.ID})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("error = %v, want ErrTaskNotFound", err)
	}
}
