// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sync"

	"asanapdf/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu       sync.RWMutex
	projects []service.Project
	tasks    map[string][]service.Task // projectID -> tasks

	// Error injection for testing
	ListProjectsErr error
	ListTasksErr    map[string]error // projectID -> error

	// Calls counts ListTasks calls per project.
	Calls map[string]int
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		tasks:        make(map[string][]service.Task),
		ListTasksErr: make(map[string]error),
		Calls:        make(map[string]int),
	}
}

// AddProject adds a project to the fake service.
func (f *FakeService) AddProject(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, service.Project{ID: id, Name: name})
	if f.tasks[id] == nil {
		f.tasks[id] = nil
	}
}

// AddTask adds a task to a project.
func (f *FakeService) AddTask(projectID string, task service.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[projectID] = append(f.tasks[projectID], task)
}

// ListProjects implements service.Service.
func (f *FakeService) ListProjects(ctx context.Context) ([]service.Project, error) {
	if f.ListProjectsErr != nil {
		return nil, f.ListProjectsErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make([]service.Project, len(f.projects))
	copy(result, f.projects)
	return result, nil
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, projectID string) ([]service.Task, error) {
	f.mu.Lock()
	f.Calls[projectID]++
	f.mu.Unlock()

	if err, ok := f.ListTasksErr[projectID]; ok && err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	tasks, ok := f.tasks[projectID]
	if !ok {
		return nil, &service.UpstreamError{Status: 404, Message: "project: Unknown object: " + projectID}
	}
	result := make([]service.Task, len(tasks))
	copy(result, tasks)
	return result, nil
}
