package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lims/config"
	"lims/library"
)

type importOptions struct {
	books   string
	members string
	store   string
	dataDir string
	dbPath  string
	newIDs  bool
}

type importResult struct {
	ok, failed int
}

func main() {
	if err := newImportCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newImportCmd(out io.Writer) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:          "import_books --books Books.json [--members Members.json]",
		Short:        "Import books (and members) from JSON arrays into the configured store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd.Context(), out, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.books, "books", "", "JSON array of books")
	f.StringVar(&opts.members, "members", "", "JSON array of members, imported before the books")
	f.StringVar(&opts.store, "store", "", "store backend (default from LIMS_STORE)")
	f.StringVar(&opts.dataDir, "data-dir", "", "directory of the json store")
	f.StringVar(&opts.dbPath, "db", "", "database file of the sqlite backends")
	f.BoolVar(&opts.newIDs, "new-ids", false, "let the store assign ids instead of keeping the file's")
	_ = cmd.MarkFlagRequired("books")
	return cmd
}

func runImport(ctx context.Context, out io.Writer, opts importOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.store != "" {
		cfg.Store = opts.store
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stores, err := library.OpenStores(cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer stores.Close()
	mgr := library.NewLibraryManager(stores.Books, stores.Members)

	if opts.members != "" {
		members, err := readArray[library.Member](opts.members)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Importing %d member(s) from %s...\n", len(members), opts.members)
		res := importMembers(ctx, out, mgr, members, opts.newIDs)
		fmt.Fprintf(out, "Members imported: %d, errors: %d\n\n", res.ok, res.failed)
	}

	books, err := readArray[library.Book](opts.books)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Importing %d book(s) from %s...\n", len(books), opts.books)
	res := importBooks(ctx, out, mgr, books, opts.newIDs)

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", res.ok)
	fmt.Fprintf(out, "Errors: %d\n", res.failed)

	if res.ok > 0 {
		all, err := mgr.GetAllBooks(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nBooks in store:")
		fmt.Fprintf(out, "%-5s %-50s %-30s\n", "ID", "Title", "Author")
		fmt.Fprintln(out, strings.Repeat("-", 85))
		for _, b := range all {
			fmt.Fprintf(out, "%-5d %-50s %-30s\n", b.ID, truncateString(b.Title, 50), truncateString(b.Author, 30))
		}
	}
	return nil
}

func importMembers(ctx context.Context, out io.Writer, mgr *library.LibraryManager, members []library.Member, newIDs bool) importResult {
	var res importResult
	for _, m := range members {
		if newIDs {
			m.ID = 0
		}
		fmt.Fprintf(out, "Importing member: %s <%s>... ", m.Name, m.Email)
		added, err := mgr.AddMember(ctx, m)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			res.failed++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", added.ID)
		res.ok++
	}
	return res
}

func importBooks(ctx context.Context, out io.Writer, mgr *library.LibraryManager, books []library.Book, newIDs bool) importResult {
	var res importResult
	for _, b := range books {
		if newIDs {
			b.ID = 0
		}
		fmt.Fprintf(out, "Importing: %s by %s... ", b.Title, b.Author)
		added, err := mgr.AddBook(ctx, b)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			res.failed++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", added.ID)
		res.ok++
	}
	return res
}

func readArray[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return items, nil
}

// truncateString cuts s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
