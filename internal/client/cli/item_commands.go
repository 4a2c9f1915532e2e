package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/vaultsync/internal/client/capture"
	"github.com/dmitrijs2005/vaultsync/internal/client/models"
)

func (a *App) Items(ctx context.Context) error {
	list, err := a.vaultService.ListItems(ctx, a.current.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.println("Vault is empty, use 'add'")
		return nil
	}
	for _, it := range list {
		a.printf("%4d  %-40s %s\n", it.ID, it.Title, it.UpdatedAt)
	}
	return nil
}

func (a *App) AddItem(ctx context.Context) error {
	key, err := a.keyFor(ctx, a.current)
	if err != nil {
		return err
	}
	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Content", a.out)
	if err != nil {
		return err
	}
	summary, err := GetSimpleText(a.reader, "Summary (optional)", a.out)
	if err != nil {
		return err
	}

	in := models.NewItem{Title: title, Content: content}
	if summary != "" {
		in.Summary = &summary
	}
	it, err := a.vaultService.InsertItem(ctx, a.current.ID, key, in)
	if err != nil {
		return err
	}
	a.printf("Item %d added\n", it.ID)
	return nil
}

// AddCapture records a capture entered by hand.
func (a *App) AddCapture(ctx context.Context) error {
	key, err := a.keyFor(ctx, a.current)
	if err != nil {
		return err
	}
	var meta capture.Metadata
	if meta.AppName, err = GetSimpleText(a.reader, "Application", a.out); err != nil {
		return err
	}
	if meta.WindowTitle, err = GetSimpleText(a.reader, "Window title", a.out); err != nil {
		return err
	}
	if meta.ScreenshotPath, err = GetSimpleText(a.reader, "Screenshot file (optional)", a.out); err != nil {
		return err
	}
	it, err := a.vaultService.AddCapture(ctx, a.current.ID, key, capture.Static(meta))
	if err != nil {
		return err
	}
	a.printf("Capture %d added\n", it.ID)
	return nil
}

// item loads an item of the current vault.
func (a *App) item(ctx context.Context, args []string, usage string) (*models.ItemView, []byte, error) {
	id, err := parseID(args, usage)
	if err != nil {
		return nil, nil, err
	}
	list, err := a.vaultService.ListItems(ctx, a.current.ID)
	if err != nil {
		return nil, nil, err
	}
	if !slices.ContainsFunc(list, func(it *models.VaultItem) bool { return it.ID == id }) {
		return nil, nil, fmt.Errorf("item %d is not in vault %q", id, a.current.Name)
	}
	key, err := a.keyFor(ctx, a.current)
	if err != nil {
		return nil, nil, err
	}
	it, err := a.vaultService.GetItem(ctx, id, key)
	if err != nil {
		return nil, nil, err
	}
	return it, key, nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	it, _, err := a.item(ctx, args, "show <item id>")
	if err != nil {
		return err
	}
	a.printf("Title:   %s\n", it.Title)
	if it.Summary != nil {
		a.printf("Summary: %s\n", *it.Summary)
	}
	if it.Image != nil {
		a.printf("Image:   %s\n", *it.Image)
	}
	a.printf("Created: %s\nUpdated: %s\n\n%s\n", it.CreatedAt, it.UpdatedAt, it.Content)
	return nil
}

// Edit replaces the title and content; empty answers keep the old value.
func (a *App) Edit(ctx context.Context, args []string) error {
	it, key, err := a.item(ctx, args, "edit <item id>")
	if err != nil {
		return err
	}
	title, err := GetSimpleText(a.reader, fmt.Sprintf("Title [%s]", it.Title), a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Content (empty keeps the current one)", a.out)
	if err != nil {
		return err
	}
	if title == "" && content == "" {
		a.println("Nothing changed")
		return nil
	}
	if title != "" && title != it.Title {
		if err := a.vaultService.UpdateTitle(ctx, it.ID, title); err != nil {
			return err
		}
	}
	if content != "" && content != it.Content {
		if err := a.vaultService.UpdateContent(ctx, it.ID, content, key); err != nil {
			return err
		}
	}
	a.printf("Item %d updated\n", it.ID)
	return nil
}

func (a *App) Remove(ctx context.Context, args []string) error {
	it, _, err := a.item(ctx, args, "rm <item id>")
	if err != nil {
		return err
	}
	if err := a.vaultService.SoftDeleteItem(ctx, it.ID); err != nil {
		return err
	}
	a.printf("Item %d deleted\n", it.ID)
	return nil
}

// Move transfers an item to another vault, unlocking it if needed.
func (a *App) Move(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: mv <item id> <vault id>")
	}
	it, key, err := a.item(ctx, args[:1], "mv <item id> <vault id>")
	if err != nil {
		return err
	}
	targetID, err := parseID(args[1:], "mv <item id> <vault id>")
	if err != nil {
		return err
	}
	target, err := a.vaultService.GetVault(ctx, targetID)
	if err != nil {
		return err
	}
	targetKey, err := a.keyFor(ctx, target)
	if err != nil {
		return err
	}
	if err := a.vaultService.MoveItem(ctx, it.ID, target.ID, key, targetKey); err != nil {
		return err
	}
	a.printf("Item %d moved to vault %q\n", it.ID, target.Name)
	return nil
}

// Reorder sets the display order of the listed items.
func (a *App) Reorder(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: reorder <item id>...")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if err := a.vaultService.Reorder(ctx, a.current.ID, ids); err != nil {
		return err
	}
	a.println("Order saved")
	return nil
}
