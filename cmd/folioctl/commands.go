package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/MrSnakeDoc/folio/internal/client"
	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/gallerysync"
)

// errUsage makes run print the usage and exit 2.
var errUsage = errors.New("usage")

type cli struct {
	api  *client.Client
	sync *gallerysync.Synchronizer
	out  io.Writer
	err  io.Writer
}

type command func(c *cli, ctx context.Context, args []string) error

var commands = map[string]command{
	"gallery":      (*cli).gallery,
	"login":        (*cli).login,
	"logout":       (*cli).logout,
	"add":          (*cli).add,
	"upload":       (*cli).upload,
	"update":       (*cli).update,
	"delete":       (*cli).delete,
	"reorder":      (*cli).reorder,
	"links":        (*cli).links,
	"link-add":     (*cli).linkAdd,
	"link-update":  (*cli).linkUpdate,
	"link-delete":  (*cli).linkDelete,
	"link-reorder": (*cli).linkReorder,
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: folioctl <command> [flags] [args]

gallery [-refresh] [-json]          show the gallery
login <password>                    store the admin token
logout                              forget the admin token
add -src -alt -description -category -year [-width]
upload -file -alt -description -category -year [-width]
update <id> [-alt] [-description] [-category] [-year] [-order] [-width]
delete <id>
reorder <id>...                     listed images first, others keep their order
links
link-add <text> <url>
link-update <id> <text> <url>
link-delete <id>
link-reorder <id>...
`)
}

func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		usage(c.err)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(c.err, "unknown command %q\n\n", args[0])
		usage(c.err)
		return 2
	}

	err := cmd(c, ctx, args[1:])
	// background refreshes started by Load still write the cache
	c.sync.Wait()

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		usage(c.err)
		return 2
	case errors.Is(err, flag.ErrHelp):
		return 2
	default:
		fmt.Fprintf(c.err, "❌ %v\n", err)
		return 1
	}
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.err)
	return fs
}

// ─────────────────────────────
// Gallery
// ─────────────────────────────

func (c *cli) gallery(ctx context.Context, args []string) error {
	fs := c.flags("gallery")
	refresh := fs.Bool("refresh", false, "bypass the local cache")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *refresh {
		if err := c.sync.Refresh(ctx); err != nil {
			return err
		}
	} else {
		c.sync.Load(ctx)
		c.sync.Wait()
	}

	st := c.sync.State()
	if st.Status == gallerysync.StatusErrorNoData {
		return errors.New(st.Error)
	}
	if *asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Data)
	}
	c.printGallery(st)
	return nil
}

func (c *cli) printGallery(st gallerysync.State) {
	if st.Error != "" {
		fmt.Fprintf(c.err, "⚠️  %s\n", st.Error)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, section := range []struct {
		title  string
		images []domain.GalleryImage
	}{
		{"finished", st.Data.Finished},
		{"wip", st.Data.WIP},
	} {
		fmt.Fprintf(tw, "%s (%d)\n", section.title, len(section.images))
		for _, img := range section.images {
			fmt.Fprintf(tw, "  %s\t%d\tw%d\t%d\t%s\t%s\n",
				img.ID, img.Order, img.Width, img.Year, img.Alt, img.Src)
		}
	}
	_ = tw.Flush()
}

// ─────────────────────────────
// Auth
// ─────────────────────────────

func (c *cli) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ok, err := c.api.Login(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("invalid password")
	}
	fmt.Fprintln(c.out, "✅ logged in")
	return nil
}

func (c *cli) logout(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	return c.api.Logout(ctx)
}

// ─────────────────────────────
// Images
// ─────────────────────────────

type imageFlags struct {
	alt         string
	description string
	category    string
	year        int
	width       int
}

func (f *imageFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&f.alt, "alt", "", "alternative text")
	fs.StringVar(&f.description, "description", "", "description")
	fs.StringVar(&f.category, "category", "", "finished or wip")
	fs.IntVar(&f.year, "year", 0, "year")
	fs.IntVar(&f.width, "width", domain.DefaultWidth, "display width, 1 to 7")
}

func (f *imageFlags) meta() (domain.NewImage, error) {
	category, err := domain.ParseCategory(f.category)
	if err != nil {
		return domain.NewImage{}, err
	}
	return domain.NewImage{
		Alt:         f.alt,
		Description: f.description,
		Category:    category,
		Year:        f.year,
		Width:       f.width,
	}, nil
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := c.flags("add")
	var f imageFlags
	f.bind(fs)
	src := fs.String("src", "", "absolute URL of an existing object")
	if err := fs.Parse(args); err != nil {
		return err
	}
	meta, err := f.meta()
	if err != nil {
		return err
	}

	c.sync.Load(ctx)
	img, err := c.sync.AddImage(ctx, domain.GalleryImage{
		Src:         *src,
		Alt:         meta.Alt,
		Description: meta.Description,
		Category:    meta.Category,
		Year:        meta.Year,
		Width:       meta.Width,
	})
	if err != nil {
		return c.failure(err)
	}
	fmt.Fprintf(c.out, "✅ added %s\n", img.ID)
	return nil
}

func (c *cli) upload(ctx context.Context, args []string) error {
	fs := c.flags("upload")
	var f imageFlags
	f.bind(fs)
	path := fs.String("file", "", "image file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errUsage
	}
	meta, err := f.meta()
	if err != nil {
		return err
	}

	file, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer file.Close()

	c.sync.Load(ctx)
	img, err := c.sync.UploadImage(ctx, client.Upload{
		Filename: filepath.Base(*path),
		Body:     file,
		Meta:     meta,
	})
	if err != nil {
		return c.failure(err)
	}
	fmt.Fprintf(c.out, "✅ uploaded %s -> %s\n", img.ID, img.Src)
	return nil
}

func (c *cli) update(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errUsage
	}
	id := args[0]

	fs := c.flags("update")
	alt := fs.String("alt", "", "alternative text")
	description := fs.String("description", "", "description")
	category := fs.String("category", "", "finished or wip")
	year := fs.Int("year", 0, "year")
	order := fs.Int("order", 0, "position inside the category")
	width := fs.Int("width", 0, "display width, 1 to 7")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var patch domain.ImagePatch
	var parseErr error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "alt":
			patch.Alt = alt
		case "description":
			patch.Description = description
		case "category":
			cat, err := domain.ParseCategory(*category)
			if err != nil {
				parseErr = err
				return
			}
			patch.Category = &cat
		case "year":
			patch.Year = year
		case "order":
			patch.Order = order
		case "width":
			patch.Width = width
		}
	})
	if parseErr != nil {
		return parseErr
	}

	c.sync.Load(ctx)
	if err := c.sync.UpdateImage(ctx, id, patch); err != nil {
		return c.failure(err)
	}
	fmt.Fprintf(c.out, "✅ updated %s\n", id)
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	c.sync.Load(ctx)
	if err := c.sync.DeleteImage(ctx, args[0]); err != nil {
		return c.failure(err)
	}
	fmt.Fprintf(c.out, "✅ deleted %s\n", args[0])
	return nil
}

// reorder moves the listed images to the front, in that order. The server
// gets the full list; the local snapshot follows once it has accepted it.
func (c *cli) reorder(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	c.sync.Load(ctx)
	current := c.sync.Gallery()

	ordered := make([]domain.GalleryImage, 0, current.Len())
	listed := make(map[string]bool, len(args))
	for _, id := range args {
		img, ok := current.Find(id)
		if !ok {
			return fmt.Errorf("image %s not found", id)
		}
		if !listed[id] {
			listed[id] = true
			ordered = append(ordered, img)
		}
	}
	for _, img := range current.All() {
		if !listed[img.ID] {
			ordered = append(ordered, img)
		}
	}

	ids := make([]string, len(ordered))
	for i, img := range ordered {
		ids[i] = img.ID
	}
	if err := c.api.ReorderImages(ctx, ids); err != nil {
		return err
	}
	if !c.sync.ReorderImages(ctx, ordered) {
		fmt.Fprintln(c.out, "order unchanged")
		return nil
	}
	fmt.Fprintln(c.out, "✅ reordered")
	return nil
}

// failure prefers the message recorded by the synchronizer.
func (c *cli) failure(err error) error {
	if msg := c.sync.State().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

// ─────────────────────────────
// Links
// ─────────────────────────────

func (c *cli) links(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	links, err := c.api.GetLinks(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, l := range links {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", l.ID, l.Order, l.Text, l.URL)
	}
	return tw.Flush()
}

func (c *cli) linkAdd(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	in := domain.LinkInput{Text: args[0], URL: args[1]}
	if err := in.Validate(); err != nil {
		return err
	}
	l, err := c.api.CreateLink(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✅ added link %d\n", l.ID)
	return nil
}

func (c *cli) linkUpdate(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	id, err := linkID(args[0])
	if err != nil {
		return err
	}
	in := domain.LinkInput{Text: args[1], URL: args[2]}
	if err := in.Validate(); err != nil {
		return err
	}
	if _, err := c.api.UpdateLink(ctx, id, in); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✅ updated link %d\n", id)
	return nil
}

func (c *cli) linkDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := linkID(args[0])
	if err != nil {
		return err
	}
	if err := c.api.DeleteLink(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✅ deleted link %d\n", id)
	return nil
}

func (c *cli) linkReorder(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	ids := make([]int, len(args))
	for i, a := range args {
		id, err := linkID(a)
		if err != nil {
			return err
		}
		ids[i] = id
	}
	if err := c.api.ReorderLinks(ctx, ids); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "✅ reordered links")
	return nil
}

func linkID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid link id %q", s)
	}
	return id, nil
}
