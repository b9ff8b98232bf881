package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/neuroboost/study-core/internal/model"
)

// TaskRepository keeps the to-do list in process memory.
type TaskRepository struct {
	mu    sync.Mutex
	tasks map[int]model.Task
}

// NewTaskRepository creates a repository holding tasks. With no arguments a small
// demo list is seeded.
func NewTaskRepository(tasks ...model.Task) *TaskRepository {
	if len(tasks) == 0 {
		tasks = []model.Task{
			{ID: 1, Title: "Review biology flashcards", Category: model.TaskCategoryStudy},
			{ID: 2, Title: "Finish physics problem set", Category: model.TaskCategoryStudy},
			{ID: 3, Title: "Tidy up desk", Category: model.TaskCategoryGeneral},
			{ID: 4, Title: "Plan tomorrow", Category: model.TaskCategoryGeneral},
		}
	}
	r := &TaskRepository{tasks: make(map[int]model.Task, len(tasks))}
	for _, t := range tasks {
		t.XPPoints = t.Category.XP()
		r.tasks[t.ID] = t
	}
	return r
}

// List returns all tasks ordered by ID.
func (r *TaskRepository) List(_ context.Context) []model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetCompleted updates the completion flag and returns the task as it was before.
func (r *TaskRepository) SetCompleted(_ context.Context, id int, completed bool) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	prev := t
	t.Completed = completed
	r.tasks[id] = t
	return prev, nil
}
