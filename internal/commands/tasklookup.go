package commands

import (
	"context"
	"fmt"

	"asanapdf/internal/service"
)

// resolveProject fetches the project list and finds ref by gid or name.
func resolveProject(ctx context.Context, svc service.Service, ref string) (service.Project, error) {
	projects, err := svc.ListProjects(ctx)
	if err != nil {
		return service.Project{}, err
	}
	return service.ResolveProject(projects, ref)
}

// resolveTaskRefs maps references onto task ids of one fetch. A reference
// matching a gid selects that task; otherwise its number is a 1-based
// position in API order. Duplicates are dropped, first occurrence wins.
func resolveTaskRefs(tasks []service.Task, refs []TaskRef) ([]string, error) {
	byID := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = true
	}

	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, ref := range refs {
		if ref.ID != "" && byID[ref.ID] {
			add(ref.ID)
			continue
		}
		if ref.Num == 0 {
			return nil, fmt.Errorf("task not found: %s", ref.ID)
		}
		if ref.Last > len(tasks) {
			return nil, fmt.Errorf("task number out of range: %d", ref.Last)
		}
		for n := ref.Num; n <= ref.Last; n++ {
			add(tasks[n-1].ID)
		}
	}
	return ids, nil
}
