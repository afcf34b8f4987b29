// Package service defines the backend-agnostic interface for task reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service defines the interface for task backend reads.
// All Asana API calls go through this interface; commands and handlers
// never talk HTTP to the API directly.
type Service interface {
	// ListProjects returns the projects visible to the token, in API order.
	ListProjects(ctx context.Context) ([]Project, error)

	// ListTasks returns the tasks of a project, in API order, with the
	// fields needed for export.
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
}

var (
	// ErrProjectNotFound is returned by ResolveProject when nothing matches.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectAmbiguous is returned by ResolveProject when several names match.
	ErrProjectAmbiguous = errors.New("ambiguous project name")
)

// UpstreamError is a non-2xx response from the task API.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream error: status %d", e.Status)
}

// Unauthorized reports whether the token was rejected.
func (e *UpstreamError) Unauthorized() bool {
	return e.Status == 401
}

// NetworkError is a transport failure (DNS, connection, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// CustomFieldCatalog derives the custom fields seen across tasks, keyed by
// id. The first occurrence of an id wins and catalog order is first-seen
// order. Fields sharing a name but not an id stay distinct.
func CustomFieldCatalog(tasks []Task) []CustomFieldDescriptor {
	seen := make(map[string]bool)
	var catalog []CustomFieldDescriptor
	for _, task := range tasks {
		for _, field := range task.CustomFields {
			if seen[field.ID] {
				continue
			}
			seen[field.ID] = true
			catalog = append(catalog, CustomFieldDescriptor{
				ID:   field.ID,
				Name: field.Name,
				Type: field.Type,
			})
		}
	}
	return catalog
}

// FilterProjects returns the projects whose name contains term
// (case-insensitive). An empty term returns all projects.
func FilterProjects(projects []Project, term string) []Project {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return projects
	}

	var result []Project
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Name), term) {
			result = append(result, p)
		}
	}
	return result
}

// ResolveProject finds a project by gid, or by name (case-insensitive, trimmed).
func ResolveProject(projects []Project, ref string) (Project, error) {
	ref = strings.TrimSpace(ref)
	for _, p := range projects {
		if p.ID == ref {
			return p, nil
		}
	}

	refLower := strings.ToLower(ref)
	var matches []Project
	for _, p := range projects {
		if strings.ToLower(strings.TrimSpace(p.Name)) == refLower {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return Project{}, fmt.Errorf("%w: %s", ErrProjectAmbiguous, ref)
	}
}
