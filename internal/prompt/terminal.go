package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ClearAnswer empties a pre-filled field.
const ClearAnswer = "-"

// Terminal asks one question per line. A blank answer keeps a pre-filled value
// and ClearAnswer empties it; running out of input cancels the dialog.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

var _ Collector = (*Terminal)(nil)

// NewTerminal reads answers from in and writes prompts to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Present asks for every field, then for confirmation.
func (t *Terminal) Present(ctx context.Context, form Form) (Result, error) {
	fmt.Fprintf(t.out, "== %s ==\n", form.Title)
	if form.Message != "" {
		fmt.Fprintln(t.out, form.Message)
	}

	values := make(map[string]string, len(form.Fields))
	for _, field := range form.Fields {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if field.Value != "" {
			fmt.Fprintf(t.out, "%s [%s] (%s clears): ", field.Placeholder, field.Value, ClearAnswer)
		} else {
			fmt.Fprintf(t.out, "%s: ", field.Placeholder)
		}
		answer, ok, err := t.readLine()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{Cancelled: true}, nil
		}
		switch answer {
		case "":
			answer = field.Value
		case ClearAnswer:
			answer = ""
		}
		values[field.Name] = answer
	}

	fmt.Fprintf(t.out, "%s? [y/N]: ", confirmLabel(form))
	answer, _, err := t.readLine()
	if err != nil {
		return Result{}, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return Result{Values: values}, nil
	default:
		return Result{Cancelled: true}, nil
	}
}

// readLine returns the trimmed line. ok is false once input is exhausted.
func (t *Terminal) readLine() (string, bool, error) {
	line, err := t.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return strings.TrimSpace(line), line != "", nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "read answer")
	}
	return strings.TrimSpace(line), true, nil
}

func confirmLabel(form Form) string {
	for _, b := range form.Buttons {
		if b.Role == RoleConfirm {
			return b.Text
		}
	}
	return "Confirm"
}
