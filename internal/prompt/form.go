// Package prompt describes the add, edit and delete-confirm dialogs and drives
// the activity controller from their answers.
package prompt

import (
	"context"
	"fmt"
	"strconv"

	"example.com/activitylog/internal/domain"
)

// FieldKind is the input type of a form field.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
)

// Role tells a collector what a button does.
type Role string

const (
	RoleCancel  Role = "cancel"
	RoleConfirm Role = "confirm"
)

// Field names shared by the add and edit forms.
const (
	FieldType     = "type"
	FieldDuration = "duration"
	FieldDate     = "date"
)

// Field is one input of a form.
type Field struct {
	Name        string    `json:"name"`
	Kind        FieldKind `json:"kind"`
	Value       string    `json:"value,omitempty"`
	Placeholder string    `json:"placeholder"`
}

// Button is one action of a form.
type Button struct {
	Text string `json:"text"`
	Role Role   `json:"role"`
}

// Form is a modal dialog description. Cancel is always offered.
type Form struct {
	Title   string   `json:"title"`
	Message string   `json:"message,omitempty"`
	Fields  []Field  `json:"fields,omitempty"`
	Buttons []Button `json:"buttons"`
}

// Result is what a collector returns after presenting a Form.
type Result struct {
	Cancelled bool
	Values    map[string]string
}

// Input maps the form values onto an ActivityInput.
func (r Result) Input() domain.ActivityInput {
	return domain.ActivityInput{
		Type:     r.Values[FieldType],
		Duration: r.Values[FieldDuration],
		Date:     r.Values[FieldDate],
	}
}

// Collector presents a form and gathers the answer.
type Collector interface {
	Present(ctx context.Context, form Form) (Result, error)
}

// AddForm asks for a new activity.
func AddForm() Form {
	return Form{
		Title: "New Activity",
		Fields: []Field{
			{Name: FieldType, Kind: KindText, Placeholder: "Activity type (e.g. Running)"},
			{Name: FieldDuration, Kind: KindNumber, Placeholder: "Duration (minutes)"},
			{Name: FieldDate, Kind: KindDate, Placeholder: "Activity date"},
		},
		Buttons: []Button{
			{Text: "Cancel", Role: RoleCancel},
			{Text: "Add", Role: RoleConfirm},
		},
	}
}

// EditForm asks for new values, pre-filled from a.
func EditForm(a domain.Activity) Form {
	return Form{
		Title: "Edit Activity",
		Fields: []Field{
			{Name: FieldType, Kind: KindText, Value: a.Type, Placeholder: "Activity type"},
			{Name: FieldDuration, Kind: KindNumber, Value: strconv.FormatFloat(a.DurationMin, 'f', -1, 64), Placeholder: "Duration (minutes)"},
			{Name: FieldDate, Kind: KindDate, Value: domain.FormatDateForInput(a.Date), Placeholder: "Activity date"},
		},
		Buttons: []Button{
			{Text: "Cancel", Role: RoleCancel},
			{Text: "Save", Role: RoleConfirm},
		},
	}
}

// DeleteForm asks to confirm removing a.
func DeleteForm(a domain.Activity) Form {
	return Form{
		Title:   "Confirm Deletion",
		Message: fmt.Sprintf("Delete the activity %q?", a.Type),
		Buttons: []Button{
			{Text: "Cancel", Role: RoleCancel},
			{Text: "Delete", Role: RoleConfirm},
		},
	}
}
