// Package selection holds which tasks and fields of a project are chosen
// for export, and projects the chosen tasks into RenderedTask values.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"asanapdf/internal/logger"
	"asanapdf/internal/service"
)

// Field names a standard task field that can be toggled.
type Field string

const (
	FieldName     Field = "name"
	FieldNotes    Field = "notes"
	FieldAssignee Field = "assignee"
	FieldDueDate  Field = "due_date"
)

// StandardFields lists the toggleable standard fields in display order.
var StandardFields = []Field{FieldName, FieldNotes, FieldAssignee, FieldDueDate}

// NoValue is printed for a custom field that carries no value.
const NoValue = "No value"

var (
	// ErrUnknownTask is returned when toggling a task not in the current project.
	ErrUnknownTask = errors.New("unknown task")

	// ErrUnknownField is returned for a field name or custom field id that
	// does not exist.
	ErrUnknownField = errors.New("unknown field")
)

// ParseField maps a user-supplied field name to a Field. "due" and
// "description" are accepted as aliases.
func ParseField(name string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "name", "title":
		return FieldName, nil
	case "notes", "description":
		return FieldNotes, nil
	case "assignee":
		return FieldAssignee, nil
	case "due_date", "due", "due_on":
		return FieldDueDate, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
}

// RenderedField is one custom field line of a rendered task.
type RenderedField struct {
	ID    string `json:"gid"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RenderedTask is a task limited to the fields currently toggled on. A nil
// pointer means the field is not selected (or, for Assignee, that the task
// has no assignee object).
type RenderedTask struct {
	ID       string            `json:"gid"`
	Name     *string           `json:"name,omitempty"`
	Notes    *string           `json:"notes,omitempty"`
	Assignee *service.Assignee `json:"assignee,omitempty"`
	DueOn    *string           `json:"due_on,omitempty"`

	// Project and Section come from the first membership only.
	Project string `json:"project,omitempty"`
	Section string `json:"section,omitempty"`

	CustomFields []RenderedField `json:"custom_fields,omitempty"`
}

// State is the selection for one project. It is owned by a single
// coordinator and is not safe for concurrent use.
type State struct {
	log *slog.Logger

	project  service.Project
	tasks    []service.Task
	catalog  []service.CustomFieldDescriptor
	selected map[string]bool
	fields   map[Field]bool
	custom   map[string]bool

	listeners []func([]RenderedTask)
}

// New returns an empty selection.
func New(log *slog.Logger) *State {
	s := &State{log: logger.OrDefault(log)}
	s.reset(service.Project{}, nil)
	return s
}

// OnChange registers fn to receive the new projection after every change.
// Listeners are called synchronously in registration order.
func (s *State) OnChange(fn func([]RenderedTask)) {
	s.listeners = append(s.listeners, fn)
}

// SelectProject replaces the current project and its tasks. The task
// selection is cleared, the custom field catalog is derived from tasks and
// every field is toggled on.
func (s *State) SelectProject(project service.Project, tasks []service.Task) {
	s.reset(project, tasks)
	s.notify()
}

func (s *State) reset(project service.Project, tasks []service.Task) {
	s.project = project
	s.tasks = tasks
	s.catalog = service.CustomFieldCatalog(tasks)
	s.selected = make(map[string]bool)

	s.fields = make(map[Field]bool, len(StandardFields))
	for _, f := range StandardFields {
		s.fields[f] = true
	}
	s.custom = make(map[string]bool, len(s.catalog))
	for _, d := range s.catalog {
		s.custom[d.ID] = true
	}
}

// Project returns the current project.
func (s *State) Project() service.Project {
	return s.project
}

// Tasks returns the fetched tasks in API order.
func (s *State) Tasks() []service.Task {
	return s.tasks
}

// Catalog returns the custom fields of the current project.
func (s *State) Catalog() []service.CustomFieldDescriptor {
	return s.catalog
}

// ToggleTask adds or removes a task from the selection.
func (s *State) ToggleTask(id string) error {
	if !s.hasTask(id) {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	if s.selected[id] {
		delete(s.selected, id)
	} else {
		s.selected[id] = true
	}
	s.notify()
	return nil
}

// SelectAllTasks selects every task of the project.
func (s *State) SelectAllTasks() {
	for _, t := range s.tasks {
		s.selected[t.ID] = true
	}
	s.notify()
}

// IsSelected reports whether the task is selected.
func (s *State) IsSelected(id string) bool {
	return s.selected[id]
}

// SelectedCount returns the number of selected tasks.
func (s *State) SelectedCount() int {
	return len(s.selected)
}

// ToggleStandardField flips a standard field.
func (s *State) ToggleStandardField(f Field) error {
	on, ok := s.fields[f]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	return s.SetStandardField(f, !on)
}

// SetStandardField switches a standard field on or off.
func (s *State) SetStandardField(f Field, on bool) error {
	if _, ok := s.fields[f]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	s.fields[f] = on
	s.notify()
	return nil
}

// FieldEnabled reports whether a standard field is on.
func (s *State) FieldEnabled(f Field) bool {
	return s.fields[f]
}

// ToggleCustomField flips a custom field by id.
func (s *State) ToggleCustomField(id string) error {
	on, ok := s.custom[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	return s.SetCustomField(id, !on)
}

// SetCustomField switches a custom field on or off by id.
func (s *State) SetCustomField(id string, on bool) error {
	if _, ok := s.custom[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, id)
	}
	s.custom[id] = on
	s.notify()
	return nil
}

// CustomFieldEnabled reports whether a custom field is on.
func (s *State) CustomFieldEnabled(id string) bool {
	return s.custom[id]
}

// ApplyToggles switches standard fields by name and custom fields by gid
// or name. A custom field name matches every catalog entry carrying it.
// Keys are applied in sorted order and the first unknown key is returned.
func (s *State) ApplyToggles(fields, custom map[string]bool) error {
	for _, name := range sortedKeys(fields) {
		f, err := ParseField(name)
		if err != nil {
			return err
		}
		if err := s.SetStandardField(f, fields[name]); err != nil {
			return err
		}
	}

	for _, key := range sortedKeys(custom) {
		ids := s.customFieldIDs(key)
		if len(ids) == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
		for _, id := range ids {
			if err := s.SetCustomField(id, custom[key]); err != nil {
				return err
			}
		}
	}
	return nil
}

// customFieldIDs resolves a gid or a case-insensitive name to catalog ids.
func (s *State) customFieldIDs(key string) []string {
	if _, ok := s.custom[key]; ok {
		return []string{key}
	}
	want := strings.ToLower(strings.TrimSpace(key))
	var ids []string
	for _, d := range s.catalog {
		if want != "" && strings.ToLower(strings.TrimSpace(d.Name)) == want {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Rendered projects the selected tasks, in API order, through the current
// field toggles. It is recomputed on every call.
func (s *State) Rendered() []RenderedTask {
	result := make([]RenderedTask, 0, len(s.selected))
	for _, t := range s.tasks {
		if s.selected[t.ID] {
			result = append(result, s.render(t))
		}
	}
	return result
}

func (s *State) render(t service.Task) RenderedTask {
	rt := RenderedTask{ID: t.ID}

	if s.fields[FieldName] {
		rt.Name = ptr(t.Name)
	}
	if s.fields[FieldNotes] {
		rt.Notes = ptr(t.Notes)
	}
	if s.fields[FieldAssignee] && t.Assignee != nil {
		rt.Assignee = &service.Assignee{Name: t.Assignee.Name}
	}
	if s.fields[FieldDueDate] {
		rt.DueOn = ptr(t.DueOn)
	}

	if len(t.Memberships) > 0 {
		rt.Project = t.Memberships[0].ProjectName
		rt.Section = t.Memberships[0].SectionName
	}

	for _, f := range t.CustomFields {
		if !s.custom[f.ID] {
			continue
		}
		if strings.TrimSpace(f.Name) == "" {
			s.log.Warn("skipping custom field without a name", "task", t.ID, "field", f.ID)
			continue
		}
		rt.CustomFields = append(rt.CustomFields, RenderedField{
			ID:    f.ID,
			Name:  f.Name,
			Value: ResolveValue(f),
		})
	}
	return rt
}

// ResolveValue returns the text printed for a custom field: the display
// value, else the enum option name, else the number, else the text, else
// NoValue.
func ResolveValue(f service.CustomField) string {
	if f.DisplayValue != nil {
		return *f.DisplayValue
	}
	if f.Value != nil {
		switch f.Value.Kind {
		case service.KindEnum, service.KindNumber, service.KindText:
			return f.Value.String()
		}
	}
	return NoValue
}

func (s *State) hasTask(id string) bool {
	for _, t := range s.tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *State) notify() {
	if len(s.listeners) == 0 {
		return
	}
	rendered := s.Rendered()
	for _, fn := range s.listeners {
		fn(rendered)
	}
}

func ptr(s string) *string {
	return &s
}
