// Package service defines the backend-agnostic interface for task reads.
package service

import "strconv"

// Project represents a project the user can see.
type Project struct {
	ID   string `json:"gid"`
	Name string `json:"name"`
}

// Assignee is the user a task is assigned to. Name may be empty when the
// API returns the assignee object without a name.
type Assignee struct {
	Name string `json:"name"`
}

// Membership associates a task with a project and optionally a section.
type Membership struct {
	ProjectName string `json:"project_name,omitempty"`
	SectionName string `json:"section_name,omitempty"`
}

// Task is a read-only snapshot of a task from one project fetch.
type Task struct {
	ID           string        `json:"gid"`
	Name         string        `json:"name"`
	Notes        string        `json:"notes"`
	Assignee     *Assignee     `json:"assignee,omitempty"`
	DueOn        string        `json:"due_on,omitempty"` // YYYY-MM-DD, empty when unset
	Memberships  []Membership  `json:"memberships,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
}

// ValueKind tags the variant held by a FieldValue.
type ValueKind int

const (
	KindEnum ValueKind = iota + 1
	KindNumber
	KindText
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k ValueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FieldValue is a typed custom field value. Only the member matching Kind
// is meaningful.
type FieldValue struct {
	Kind   ValueKind `json:"kind"`
	Enum   string    `json:"enum,omitempty"`   // enum option name
	Number float64   `json:"number,omitempty"` // number value
	Text   string    `json:"text,omitempty"`   // text value
}

// String formats the value. Numbers use the shortest decimal form.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindEnum:
		return v.Enum
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// CustomField is a project-defined typed attribute attached to a task.
type CustomField struct {
	ID   string `json:"gid"`
	Name string `json:"name"`
	Type string `json:"type"`

	// DisplayValue is the server-formatted value; nil when the API sent null.
	DisplayValue *string `json:"display_value"`

	// Value is the raw value, nil when the field is empty.
	Value *FieldValue `json:"value,omitempty"`
}

// CustomFieldDescriptor describes a custom field in a project's catalog.
type CustomFieldDescriptor struct {
	ID   string `json:"gid"`
	Name string `json:"name"`
	Type string `json:"type"`
}
