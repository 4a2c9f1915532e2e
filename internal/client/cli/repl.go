package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isOpen() bool

	Vaults(ctx context.Context) error
	CreateVault(ctx context.Context) error
	OpenVault(ctx context.Context, args []string) error
	CloseVault(ctx context.Context) error
	RenameVault(ctx context.Context, args []string) error
	DeleteVault(ctx context.Context, args []string) error
	ChangePassword(ctx context.Context) error

	Items(ctx context.Context) error
	AddItem(ctx context.Context) error
	AddCapture(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Move(ctx context.Context, args []string) error
	Reorder(ctx context.Context, args []string) error

	Export(ctx context.Context) error
	Import(ctx context.Context) error
	Status(ctx context.Context) error
	Preview(ctx context.Context) error
	Purge(ctx context.Context, args []string) error
	Settings(ctx context.Context, args []string) error
}

const (
	helpClosed = "Available commands: vaults, create, open <id>, rename <id> <name>, delete <id>, " +
		"export, import, status, preview, purge [days], settings [set <key> <value>], exit"
	helpOpen = "Available commands: (l)ist, add, capture, show <id>, edit <id>, rm <id>, mv <id> <vault>, " +
		"reorder <id>..., passwd, close, vaults, export, import, status, preview, purge [days], settings, exit"
)

// runREPL starts a simple read–eval–print loop for the vaultctl CLI.
//
// It reads a line from reader, parses the first token as the command and
// dispatches the remaining tokens to methods on 'a'. Handler errors are
// printed and the loop continues. The loop exits on EOF or when the user
// types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("vs> %s > ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if err := dispatch(ctx, a, cmd, args); err != nil {
			if errors.Is(err, errQuit) {
				printlnFn("Bye!")
				return
			}
			printlnFn("Error:", err)
		}
	}
}

var (
	errQuit = errors.New("quit")
	// errNoVault is returned by item commands run before 'open'.
	errNoVault = errors.New("no vault is open, use 'open <id>' first")
)

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isOpen() {
			printlnFn(helpOpen)
		} else {
			printlnFn(helpClosed)
		}
		return nil

	case "vaults":
		return a.Vaults(ctx)
	case "create":
		return a.CreateVault(ctx)
	case "open":
		return a.OpenVault(ctx, args)
	case "rename":
		return a.RenameVault(ctx, args)
	case "delete":
		return a.DeleteVault(ctx, args)

	case "export":
		return a.Export(ctx)
	case "import":
		return a.Import(ctx)
	case "status":
		return a.Status(ctx)
	case "preview":
		return a.Preview(ctx)
	case "purge":
		return a.Purge(ctx, args)
	case "settings":
		return a.Settings(ctx, args)

	case "exit", "quit":
		return errQuit
	}

	if !isItemCommand(cmd) {
		printlnFn("Unknown command:", cmd)
		return nil
	}
	if !a.isOpen() {
		return errNoVault
	}

	switch cmd {
	case "close":
		return a.CloseVault(ctx)
	case "passwd":
		return a.ChangePassword(ctx)
	case "l", "list":
		return a.Items(ctx)
	case "add":
		return a.AddItem(ctx)
	case "capture":
		return a.AddCapture(ctx)
	case "show":
		return a.Show(ctx, args)
	case "edit":
		return a.Edit(ctx, args)
	case "rm":
		return a.Remove(ctx, args)
	case "mv":
		return a.Move(ctx, args)
	default: // reorder
		return a.Reorder(ctx, args)
	}
}

func isItemCommand(cmd string) bool {
	switch cmd {
	case "close", "passwd", "l", "list", "add", "capture", "show", "edit", "rm", "mv", "reorder":
		return true
	}
	return false
}
