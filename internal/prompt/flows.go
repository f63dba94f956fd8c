package prompt

import (
	"context"

	"github.com/pkg/errors"

	"example.com/activitylog/internal/domain"
)

// ErrCancelled is returned when the user dismisses a dialog.
var ErrCancelled = errors.New("cancelled")

// Controller is the subset of domain.Controller the flows drive.
type Controller interface {
	Get(ctx context.Context, id string) (domain.Activity, error)
	Add(ctx context.Context, input domain.ActivityInput) (domain.Activity, error)
	Edit(ctx context.Context, id string, input domain.ActivityInput) (domain.Activity, error)
	Delete(ctx context.Context, id string) (int, error)
}

// Flows runs the add, edit and delete dialogs against a controller.
// A cancelled dialog never reaches the controller.
type Flows struct {
	collector  Collector
	controller Controller
}

// NewFlows constructs Flows.
func NewFlows(collector Collector, controller Controller) *Flows {
	return &Flows{collector: collector, controller: controller}
}

// Add collects a new activity and appends it.
func (f *Flows) Add(ctx context.Context) (domain.Activity, error) {
	res, err := f.present(ctx, AddForm())
	if err != nil {
		return domain.Activity{}, err
	}
	return f.controller.Add(ctx, res.Input())
}

// Edit collects new values for the activity with the given ID.
func (f *Flows) Edit(ctx context.Context, id string) (domain.Activity, error) {
	current, err := f.controller.Get(ctx, id)
	if err != nil {
		return domain.Activity{}, err
	}
	res, err := f.present(ctx, EditForm(current))
	if err != nil {
		return domain.Activity{}, err
	}
	return f.controller.Edit(ctx, id, res.Input())
}

// Delete confirms and removes the activity with the given ID.
func (f *Flows) Delete(ctx context.Context, id string) (int, error) {
	current, err := f.controller.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if _, err := f.present(ctx, DeleteForm(current)); err != nil {
		return 0, err
	}
	return f.controller.Delete(ctx, id)
}

func (f *Flows) present(ctx context.Context, form Form) (Result, error) {
	res, err := f.collector.Present(ctx, form)
	if err != nil {
		return Result{}, errors.Wrapf(err, "present %q", form.Title)
	}
	if res.Cancelled {
		return Result{}, ErrCancelled
	}
	return res, nil
}
