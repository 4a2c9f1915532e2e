package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	open bool

	calls []string
	args  map[string][]string
	fail  map[string]error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return f.fail[name]
}

func (f *fakeExec) isOpen() bool { return f.open }

func (f *fakeExec) Vaults(ctx context.Context) error      { return f.record("vaults", nil) }
func (f *fakeExec) CreateVault(ctx context.Context) error { return f.record("create", nil) }
func (f *fakeExec) OpenVault(ctx context.Context, args []string) error {
	f.open = true
	return f.record("open", args)
}
func (f *fakeExec) CloseVault(ctx context.Context) error {
	f.open = false
	return f.record("close", nil)
}
func (f *fakeExec) RenameVault(ctx context.Context, args []string) error {
	return f.record("rename", args)
}
func (f *fakeExec) DeleteVault(ctx context.Context, args []string) error {
	return f.record("delete", args)
}
func (f *fakeExec) ChangePassword(ctx context.Context) error { return f.record("passwd", nil) }
func (f *fakeExec) Items(ctx context.Context) error          { return f.record("list", nil) }
func (f *fakeExec) AddItem(ctx context.Context) error        { return f.record("add", nil) }
func (f *fakeExec) AddCapture(ctx context.Context) error     { return f.record("capture", nil) }
func (f *fakeExec) Show(ctx context.Context, args []string) error {
	return f.record("show", args)
}
func (f *fakeExec) Edit(ctx context.Context, args []string) error   { return f.record("edit", args) }
func (f *fakeExec) Remove(ctx context.Context, args []string) error { return f.record("rm", args) }
func (f *fakeExec) Move(ctx context.Context, args []string) error   { return f.record("mv", args) }
func (f *fakeExec) Reorder(ctx context.Context, args []string) error {
	return f.record("reorder", args)
}
func (f *fakeExec) Export(ctx context.Context) error  { return f.record("export", nil) }
func (f *fakeExec) Import(ctx context.Context) error  { return f.record("import", nil) }
func (f *fakeExec) Status(ctx context.Context) error  { return f.record("status", nil) }
func (f *fakeExec) Preview(ctx context.Context) error { return f.record("preview", nil) }
func (f *fakeExec) Purge(ctx context.Context, args []string) error {
	return f.record("purge", args)
}
func (f *fakeExec) Settings(ctx context.Context, args []string) error {
	return f.record("settings", args)
}

// capturePrintln swaps printlnFn for a recorder.
func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func runLines(exec execIface, lines ...string) {
	r := bufio.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "status" }, r)
}

func TestRunREPL_DispatchesWithArgs(t *testing.T) {
	capturePrintln(t)
	exec := &fakeExec{}

	runLines(exec,
		"help",
		"vaults",
		"open 3",
		"l",
		"show 7",
		"mv 7 2",
		"reorder 3 1 2",
		"settings set device_name my laptop",
		"purge 10",
		"close",
		"exit",
		"vaults",
	)

	assert.Equal(t, []string{"vaults", "open", "list", "show", "mv", "reorder", "settings", "purge", "close"}, exec.calls)
	assert.Equal(t, []string{"3"}, exec.args["open"])
	assert.Equal(t, []string{"7", "2"}, exec.args["mv"])
	assert.Equal(t, []string{"3", "1", "2"}, exec.args["reorder"])
	assert.Equal(t, []string{"set", "device_name", "my", "laptop"}, exec.args["settings"])
}

func TestRunREPL_ItemCommandsNeedOpenVault(t *testing.T) {
	out := capturePrintln(t)
	exec := &fakeExec{}

	runLines(exec, "add", "show 1", "quit")

	assert.Empty(t, exec.calls)
	require.Contains(t, *out, "Error: "+errNoVault.Error())
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_UnknownCommandAndErrors(t *testing.T) {
	out := capturePrintln(t)
	exec := &fakeExec{fail: map[string]error{"export": errors.New("folder gone")}}

	runLines(exec, "", "foobar", "export", "status")

	assert.Equal(t, []string{"export", "status"}, exec.calls, "loop continues after a failing handler and stops on EOF")
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Contains(t, *out, "Error: folder gone")
}

func TestRunREPL_HelpDependsOnState(t *testing.T) {
	out := capturePrintln(t)

	runLines(&fakeExec{}, "help")
	assert.Contains(t, *out, helpClosed)

	runLines(&fakeExec{open: true}, "help")
	assert.Contains(t, *out, helpOpen)
}
