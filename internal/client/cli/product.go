package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/client/editor"
	"github.com/vitaria/catalog/internal/client/gallery"
	"github.com/vitaria/catalog/internal/client/hero"
	"github.com/vitaria/catalog/internal/client/upload"
	"github.com/vitaria/catalog/internal/media"
)

func (a *App) productCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "List, inspect and edit products",
	}
	cmd.AddCommand(a.productListCmd(), a.productShowCmd(), a.productCreateCmd(), a.productDeleteCmd(), a.productImagesCmd())
	return cmd
}

func (a *App) productListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: a.loggedIn(func(cmd *cobra.Command, _ []string) error {
			list, err := a.api.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tHERO\tGALLERY\tUPDATED")
			for _, p := range list {
				hasHero := "-"
				if p.HeroKey != "" {
					hasHero = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Title, hasHero, len(p.Gallery), p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		}),
	}
}

func (a *App) productShowCmd() *cobra.Command {
	var withURLs bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a product and its image keys",
		Args:  cobra.ExactArgs(1),
		RunE: a.loggedIn(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.api.GetProduct(ctx, args[0])
			if err != nil {
				return err
			}
			var urls map[string]string
			if withURLs {
				keys := media.ReferencedKeys{Hero: p.HeroKey, Gallery: p.Gallery}.All()
				if len(keys) > 0 {
					resp, err := a.api.ViewURLs(ctx, keys)
					if err != nil {
						return err
					}
					urls = resp.URLs
				}
			}
			a.printProduct(p, urls)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&withURLs, "urls", false, "also print signed view URLs")
	return cmd
}

func (a *App) productCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <title>",
		Short: "Create a product",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.loggedIn(func(cmd *cobra.Command, args []string) error {
			p, err := a.api.CreateProduct(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created product %s\n", p.ID)
			return nil
		}),
	}
}

func (a *App) productDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product and its images",
		Args:  cobra.ExactArgs(1),
		RunE: a.loggedIn(func(cmd *cobra.Command, args []string) error {
			if err := a.api.DeleteProduct(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted product %s\n", args[0])
			return nil
		}),
	}
}

type imagesFlags struct {
	hero       string
	clearHero  bool
	add        []string
	remove     []string
	moves      []string
	retries    int
	previewDir string
}

func (a *App) productImagesCmd() *cobra.Command {
	var f imagesFlags
	cmd := &cobra.Command{
		Use:   "images <id>",
		Short: "Upload, remove and reorder product images, then save",
		Long: `Edits the hero image and the gallery of a product in one session.

Steps run in this order: clear or replace the hero, remove gallery keys,
upload gallery files one at a time, retry failed uploads, apply moves, save.
Gallery positions given to --move start at 1. Keys uploaded but not saved
are deleted after the save.`,
		Args: cobra.ExactArgs(1),
		RunE: a.loggedIn(func(cmd *cobra.Command, args []string) error {
			return a.editImages(cmd, args[0], f)
		}),
	}
	fl := cmd.Flags()
	fl.StringVar(&f.hero, "hero", "", "file to upload as the hero image")
	fl.BoolVar(&f.clearHero, "clear-hero", false, "remove the hero image")
	fl.StringArrayVar(&f.add, "add", nil, "file to append to the gallery (repeatable)")
	fl.StringArrayVar(&f.remove, "remove", nil, "gallery key to remove (repeatable)")
	fl.StringArrayVar(&f.moves, "move", nil, "move a gallery image, as from:to (repeatable)")
	fl.IntVar(&f.retries, "retries", 0, "times to retry failed gallery uploads")
	fl.StringVar(&f.previewDir, "preview-dir", "", "keep a copy of each queued gallery file here until it leaves the queue")
	cmd.MarkFlagsMutuallyExclusive("hero", "clear-hero")
	return cmd
}

func (a *App) editImages(cmd *cobra.Command, productID string, f imagesFlags) error {
	ctx := cmd.Context()

	var heroFile *upload.DiskFile
	if f.hero != "" {
		var err error
		if heroFile, err = upload.OpenDisk(f.hero); err != nil {
			return err
		}
	}
	files := make([]upload.LocalFile, 0, len(f.add))
	for _, path := range f.add {
		df, err := upload.OpenDisk(path)
		if err != nil {
			return err
		}
		files = append(files, df)
	}

	heroLabel := "hero"
	if heroFile != nil {
		heroLabel = "hero " + filepath.Base(f.hero)
	}
	heroProgress := newProgress(a.errOut, a.tty, heroLabel)
	galleryProgress := newGalleryProgress(a)

	opts := editor.Options{
		Log:         a.log,
		ViewRefresh: a.cfg.ViewRefreshInterval,
		OnHero: func(st hero.State) {
			if st.Status == hero.StatusUploading || st.Status == hero.StatusDone {
				heroProgress.Report(st.Progress)
			}
		},
		OnGallery: galleryProgress.update,
	}
	if f.previewDir != "" {
		opts.Preview = copyPreviews(f.previewDir, a.errOut)
	}
	ed, err := editor.Open(ctx, productID, a.api, a.exec, a.repos.Journal, opts)
	if err != nil {
		return err
	}
	defer ed.Close()

	if f.clearHero {
		ed.ClearHero(ctx)
	}
	if heroFile != nil {
		if _, err := ed.UploadHero(ctx, heroFile); err != nil {
			return fmt.Errorf("hero upload failed: %s", media.Message(err))
		}
	}

	for _, key := range f.remove {
		if !ed.RemoveGalleryKey(ctx, key) {
			return fmt.Errorf("gallery has no key %q", key)
		}
	}

	if len(files) > 0 {
		room := media.MaxGalleryImages - len(ed.Gallery().Items)
		err := ed.AddFiles(files...)
		var invalid media.ValidationErrors
		if errors.As(err, &invalid) {
			for _, v := range invalid {
				fmt.Fprintf(a.errOut, "skipped: %s\n", v.Error())
			}
		} else if err != nil {
			return err
		}
		if valid := len(files) - len(invalid); valid > room {
			fmt.Fprintf(a.errOut, "upload queue is limited to %d files; %d files not queued\n", media.MaxGalleryImages, valid-max(room, 0))
		}
	}
	if err := ed.Wait(ctx); err != nil {
		return err
	}
	for i := 0; i < f.retries && ed.RetryFailedUploads() > 0; i++ {
		if err := ed.Wait(ctx); err != nil {
			return err
		}
	}

	for _, mv := range f.moves {
		from, to, err := ParseMove(mv)
		if err != nil {
			return err
		}
		if err := ed.ReorderGallery(from, to); err != nil {
			return err
		}
	}

	p, err := ed.Save(ctx)
	if err != nil {
		return fmt.Errorf("save failed: %w", err)
	}
	a.printProduct(p, nil)

	var failed []string
	for _, it := range ed.Gallery().Items {
		if it.Status == gallery.StatusError {
			failed = append(failed, fmt.Sprintf("%s (%s)", it.Filename, it.Err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d gallery uploads failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func (a *App) printProduct(p *api.Product, urls map[string]string) {
	line := func(label, key string) {
		fmt.Fprintf(a.out, "%-8s %s\n", label, orNone(key))
		if u, ok := urls[key]; ok {
			fmt.Fprintf(a.out, "%-8s %s\n", "", u)
		}
	}
	fmt.Fprintf(a.out, "%-8s %s\n%-8s %s\n", "id", p.ID, "title", p.Title)
	line("hero", p.HeroKey)
	for i, k := range p.Gallery {
		line(fmt.Sprintf("#%d", i+1), k)
	}
}

// galleryProgress keeps one printer per gallery item and reports 100 when an
// uploading item leaves the queue.
type galleryProgress struct {
	a        *App
	mu       sync.Mutex
	printers map[string]*progress
}

func newGalleryProgress(a *App) *galleryProgress {
	return &galleryProgress{a: a, printers: map[string]*progress{}}
}

func (g *galleryProgress) update(s gallery.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]bool, len(s.Items))
	for _, it := range s.Items {
		seen[it.ID] = true
		p, ok := g.printers[it.ID]
		if it.Status == gallery.StatusUploading {
			if !ok {
				p = newProgress(g.a.errOut, g.a.tty, it.Filename)
				g.printers[it.ID] = p
			}
			p.Report(it.Progress)
			continue
		}
		if ok && it.Status == gallery.StatusError {
			if g.a.tty {
				fmt.Fprintln(g.a.errOut)
			}
			fmt.Fprintf(g.a.errOut, "%s failed: %s\n", it.Filename, it.Err)
			delete(g.printers, it.ID)
		}
	}
	for id, p := range g.printers {
		if !seen[id] {
			p.Report(100)
			delete(g.printers, id)
		}
	}
}
