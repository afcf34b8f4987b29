package asana

import "asanapdf/internal/service"

// Wire shapes of the Asana API responses. Optional objects are pointers so
// null and absent are both nil.

type wirePage[T any] struct {
	Data     []T           `json:"data"`
	NextPage *wireNextPage `json:"next_page"`
}

type wireNextPage struct {
	Offset string `json:"offset"`
	Path   string `json:"path"`
	URI    string `json:"uri"`
}

type wireErrors struct {
	Errors []struct {
		Message string `json:"message"`
		Help    string `json:"help"`
	} `json:"errors"`
}

type wireProject struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type wireNamed struct {
	Name string `json:"name"`
}

type wireMembership struct {
	Project *wireNamed `json:"project"`
	Section *wireNamed `json:"section"`
}

type wireCustomField struct {
	GID          string     `json:"gid"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	DisplayValue *string    `json:"display_value"`
	EnumValue    *wireNamed `json:"enum_value"`
	NumberValue  *float64   `json:"number_value"`
	TextValue    *string    `json:"text_value"`
}

type wireTask struct {
	GID          string            `json:"gid"`
	Name         string            `json:"name"`
	Notes        string            `json:"notes"`
	Assignee     *wireNamed        `json:"assignee"`
	DueOn        *string           `json:"due_on"`
	Memberships  []wireMembership  `json:"memberships"`
	CustomFields []wireCustomField `json:"custom_fields"`
}

func (t wireTask) toTask() service.Task {
	task := service.Task{
		ID:    t.GID,
		Name:  t.Name,
		Notes: t.Notes,
	}
	if t.Assignee != nil {
		task.Assignee = &service.Assignee{Name: t.Assignee.Name}
	}
	if t.DueOn != nil {
		task.DueOn = *t.DueOn
	}
	for _, m := range t.Memberships {
		var membership service.Membership
		if m.Project != nil {
			membership.ProjectName = m.Project.Name
		}
		if m.Section != nil {
			membership.SectionName = m.Section.Name
		}
		task.Memberships = append(task.Memberships, membership)
	}
	for _, f := range t.CustomFields {
		task.CustomFields = append(task.CustomFields, service.CustomField{
			ID:           f.GID,
			Name:         f.Name,
			Type:         f.Type,
			DisplayValue: f.DisplayValue,
			Value:        f.value(),
		})
	}
	return task
}

// value picks the raw value variant: a named enum option first, then a
// number, then non-empty text. Nil means the field carries no value.
func (f wireCustomField) value() *service.FieldValue {
	switch {
	case f.EnumValue != nil && f.EnumValue.Name != "":
		return &service.FieldValue{Kind: service.KindEnum, Enum: f.EnumValue.Name}
	case f.NumberValue != nil:
		return &service.FieldValue{Kind: service.KindNumber, Number: *f.NumberValue}
	case f.TextValue != nil && *f.TextValue != "":
		return &service.FieldValue{Kind: service.KindText, Text: *f.TextValue}
	default:
		return nil
	}
}
