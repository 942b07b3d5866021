// Package cli implements the terminal surface of the grid: table rendering
// and the interactive command loop driving a store.Store.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/maruel/datagrid/internal/export"
	"github.com/maruel/datagrid/internal/grid"
	"github.com/maruel/datagrid/internal/store"
)

// errUsage is wrapped by argument errors of the commands.
var errUsage = errors.New("usage")

// Shell runs commands against a store and prints to out.
type Shell struct {
	store  *store.Store
	out    io.Writer
	prompt string
	// Export options used by the export command.
	Export export.Options
}

// NewShell returns a Shell printing to out. An empty prompt disables it.
func NewShell(s *store.Store, out io.Writer, prompt string) *Shell {
	return &Shell{store: s, out: out, prompt: prompt}
}

type command struct {
	args string
	help string
	run  func(sh *Shell, ctx context.Context, args []string, rest string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"load":   {"", "fetch the collection from the remote", (*Shell).load},
		"show":   {"", "print the current view", (*Shell).show},
		"filter": {"[text]", "filter the view; no text clears the filter", (*Shell).filter},
		"sort":   {"<field> [asc|desc|none]", "sort the view by a column", (*Shell).sort},
		"reset":  {"", "clear the sort", (*Shell).reset},
		"edit":   {"<id>", "open the edit session on a record", (*Shell).edit},
		"set":    {"<field> <value>", "change a field of the draft", (*Shell).set},
		"save":   {"", "send the draft to the remote", (*Shell).save},
		"cancel": {"", "discard the draft", (*Shell).cancel},
		"rm":     {"<id>", "delete a record", (*Shell).remove},
		"add":    {"field=value...", "create a record", (*Shell).add},
		"export": {"<file>", "write the current view as CSV", (*Shell).export},
		"help":   {"", "list commands", (*Shell).help},
	}
}

// Run reads commands from in until EOF, "quit" or ctx is done. Command
// failures are printed and do not stop the loop.
func (sh *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if sh.prompt != "" {
			_, _ = fmt.Fprint(sh.out, sh.prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		quit, err := sh.Exec(ctx, scanner.Text())
		if err != nil {
			_, _ = fmt.Fprintf(sh.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Exec runs a single command line. quit is true for "quit" and "exit".
func (sh *Shell) Exec(ctx context.Context, line string) (quit bool, err error) {
	args, err := SplitArgs(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}
	name := strings.ToLower(args[0])
	if name == "quit" || name == "exit" {
		return true, nil
	}
	cmd, ok := commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q; try help", args[0])
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), args[0]))
	if err := cmd.run(sh, ctx, args[1:], rest); err != nil {
		if errors.Is(err, errUsage) {
			return false, fmt.Errorf("usage: %s %s", name, cmd.args)
		}
		return false, err
	}
	return false, nil
}

func (sh *Shell) load(ctx context.Context, _ []string, _ string) error {
	if err := sh.store.Load(ctx); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	_, err := fmt.Fprintf(sh.out, "loaded %d records\n", sh.store.Len())
	return err
}

func (sh *Shell) show(_ context.Context, _ []string, _ string) error {
	return sh.Print()
}

// Print renders the current view with a status line.
func (sh *Shell) Print() error {
	view := sh.store.View()
	editing, _, _ := sh.store.Session()
	if err := PrintView(sh.out, sh.store.Columns(), view, editing); err != nil {
		return err
	}
	status := fmt.Sprintf("%d of %d records", len(view), sh.store.Len())
	if f := sh.store.FilterText(); f != "" {
		status += fmt.Sprintf(", filter %q", f)
	}
	if s := sh.store.Sort(); !s.IsZero() {
		status += fmt.Sprintf(", sorted by %s %s", s.Field, s.Direction)
	}
	if err := sh.store.LastError(); err != nil {
		status += fmt.Sprintf(", last error: %v", err)
	}
	_, err := fmt.Fprintln(sh.out, status)
	return err
}

func (sh *Shell) filter(_ context.Context, _ []string, rest string) error {
	sh.store.SetFilterText(unquote(rest))
	return sh.Print()
}

func (sh *Shell) sort(_ context.Context, args []string, _ string) error {
	if len(args) == 0 || len(args) > 2 {
		return errUsage
	}
	dir := grid.SortAsc
	if len(args) == 2 {
		d, err := grid.ParseSortDir(args[1])
		if err != nil {
			return err
		}
		dir = d
	}
	if err := sh.store.SetSort(args[0], dir); err != nil {
		return err
	}
	return sh.Print()
}

func (sh *Shell) reset(_ context.Context, _ []string, _ string) error {
	sh.store.ResetSort()
	return sh.Print()
}

func (sh *Shell) edit(_ context.Context, args []string, _ string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := sh.store.BeginEdit(id); err != nil {
		return err
	}
	return sh.printDraft()
}

func (sh *Shell) set(_ context.Context, args []string, rest string) error {
	if len(args) < 1 {
		return errUsage
	}
	col := sh.store.Columns().Lookup(args[0])
	if col == nil || !col.Editable {
		return fmt.Errorf("%w: %q", store.ErrUnknownColumn, args[0])
	}
	raw := ""
	if len(args) > 1 {
		raw = unquote(strings.TrimPrefix(rest, args[0]))
	}
	v, err := ParseValue(col, raw)
	if err != nil {
		return err
	}
	if err := sh.store.UpdateDraft(grid.Fields{col.Field: v}); err != nil {
		return err
	}
	return sh.printDraft()
}

// unquote returns the trimmed text as typed, including inner spaces, minus
// the quotes if the whole text is one quoted string.
func unquote(text string) string {
	text = strings.TrimSpace(text)
	if unq, err := strconv.Unquote(text); err == nil {
		return unq
	}
	return text
}

func (sh *Shell) save(ctx context.Context, _ []string, _ string) error {
	id, _, _ := sh.store.Session()
	if err := sh.store.CommitEdit(ctx); err != nil {
		return fmt.Errorf("save failed: %w", err)
	}
	_, err := fmt.Fprintf(sh.out, "saved record %d\n", id)
	return err
}

func (sh *Shell) cancel(_ context.Context, _ []string, _ string) error {
	sh.store.CancelEdit()
	return nil
}

func (sh *Shell) remove(ctx context.Context, args []string, _ string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := sh.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	_, err = fmt.Fprintf(sh.out, "deleted record %d\n", id)
	return err
}

func (sh *Shell) add(ctx context.Context, args []string, _ string) error {
	if len(args) == 0 {
		return errUsage
	}
	fields, err := ParseAssignments(sh.store.Columns(), args)
	if err != nil {
		return err
	}
	r, err := sh.store.Add(ctx, fields)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}
	_, err = fmt.Fprintf(sh.out, "created record %d\n", r.ID)
	return err
}

func (sh *Shell) export(_ context.Context, args []string, _ string) error {
	if len(args) != 1 {
		return errUsage
	}
	n, err := WriteCSV(args[0], sh.store.Columns(), sh.store.View(), &sh.Export)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(sh.out, "exported %d records to %s\n", n, args[0])
	return err
}

func (sh *Shell) help(_ context.Context, _ []string, _ string) error {
	for _, name := range slices.Sorted(maps.Keys(commands)) {
		c := commands[name]
		if _, err := fmt.Fprintf(sh.out, "  %-7s %-24s %s\n", name, c.args, c.help); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(sh.out, "  %-7s %-24s %s\n", "quit", "", "leave")
	return err
}

func (sh *Shell) printDraft() error {
	id, draft, ok := sh.store.Session()
	if !ok {
		return store.ErrNoActiveSession
	}
	if _, err := fmt.Fprintf(sh.out, "editing record %d\n", id); err != nil {
		return err
	}
	for _, c := range sh.store.Columns() {
		if _, err := fmt.Fprintf(sh.out, "  %s: %s\n", c.Field, grid.StringValue(draft[c.Field])); err != nil {
			return err
		}
	}
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

// WriteCSV exports view to the file at path and returns the number of rows.
func WriteCSV(path string, cols grid.Columns, view grid.View, opts *export.Options) (n int, err error) {
	f, err := os.Create(path) //nolint:gosec // G304: path is given by the user
	if err != nil {
		return 0, err
	}
	defer func() {
		if err2 := f.Close(); err == nil {
			err = err2
		}
	}()
	if err := export.CSV(f, cols, view, opts); err != nil {
		return 0, err
	}
	return len(view), nil
}
