package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultCoverFileName = "cover.jpg"

// Library is the on-disk tree of book directories, <author>/<title>/cover.jpg.
// It is the only place cover bytes are stored.
type Library struct {
	root        string
	coverName   string
	scanWorkers int
}

type Options struct {
	CoverFileName string
	ScanWorkers   int
}

// Entry describes one book directory found by Scan.
type Entry struct {
	Path     string
	Author   string
	Title    string
	HasCover bool
	ModTime  time.Time
}

// New opens the library rooted at root, creating the directory if needed.
func New(root string, opts Options) (*Library, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create library root: %w", err)
	}
	if opts.CoverFileName == "" {
		opts.CoverFileName = DefaultCoverFileName
	}
	if opts.ScanWorkers <= 0 {
		opts.ScanWorkers = 8
	}
	return &Library{
		root:        root,
		coverName:   opts.CoverFileName,
		scanWorkers: opts.ScanWorkers,
	}, nil
}

func (l *Library) Root() string {
	return l.root
}

// Dir returns the absolute directory for a book path.
func (l *Library) Dir(bookPath string) (string, error) {
	author, title, err := SplitBookPath(bookPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, author, title), nil
}

func (l *Library) CoverPath(bookPath string) (string, error) {
	dir, err := l.Dir(bookPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, l.coverName), nil
}

// HasCover reports whether a cover file exists for the book.
func (l *Library) HasCover(bookPath string) bool {
	p, err := l.CoverPath(bookPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Exists reports whether the book directory exists.
func (l *Library) Exists(bookPath string) bool {
	dir, err := l.Dir(bookPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// EnsureBookDir creates the book directory and stamps it with modTime.
func (l *Library) EnsureBookDir(bookPath string, modTime time.Time) error {
	dir, err := l.Dir(bookPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	return l.stamp(dir, modTime)
}

// WriteCover stores cover bytes atomically and stamps the book directory.
func (l *Library) WriteCover(bookPath string, data []byte, modTime time.Time) error {
	dir, err := l.Dir(bookPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}

	// Create temp file in same directory for atomic write
	tmpFile, err := os.CreateTemp(dir, ".cover_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // Clean up if we didn't rename
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write cover: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, l.coverName)); err != nil {
		return fmt.Errorf("install cover: %w", err)
	}
	return l.stamp(dir, modTime)
}

// RemoveCover deletes the cover file if present.
func (l *Library) RemoveCover(bookPath string, modTime time.Time) error {
	p, err := l.CoverPath(bookPath)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cover: %w", err)
	}
	return l.stamp(filepath.Dir(p), modTime)
}

// Touch sets the modification time of the book directory.
func (l *Library) Touch(bookPath string, modTime time.Time) error {
	dir, err := l.Dir(bookPath)
	if err != nil {
		return err
	}
	return l.stamp(dir, modTime)
}

// RemoveBook deletes the book directory and its author directory once empty.
func (l *Library) RemoveBook(bookPath string) error {
	dir, err := l.Dir(bookPath)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove book dir: %w", err)
	}
	l.pruneAuthorDir(filepath.Dir(dir))
	return nil
}

// MoveBook renames a book directory after its author or title changed.
func (l *Library) MoveBook(oldPath, newPath string, modTime time.Time) error {
	if oldPath == newPath {
		return l.EnsureBookDir(newPath, modTime)
	}
	src, err := l.Dir(oldPath)
	if err != nil {
		return err
	}
	dst, err := l.Dir(newPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return l.EnsureBookDir(newPath, modTime)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("move book: %s already exists", newPath)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create author dir: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move book: %w", err)
	}
	l.pruneAuthorDir(filepath.Dir(src))
	return l.stamp(dst, modTime)
}

// Scan lists every book directory. Author directories are read concurrently.
func (l *Library) Scan(ctx context.Context) ([]Entry, error) {
	authors, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read library root: %w", err)
	}

	results := make([][]Entry, len(authors))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.scanWorkers)

	for i, a := range authors {
		if !a.IsDir() || strings.HasPrefix(a.Name(), ".") {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := l.scanAuthor(a.Name())
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Entry
	for _, r := range results {
		all = append(all, r...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })
	return all, nil
}

func (l *Library) scanAuthor(author string) ([]Entry, error) {
	authorDir := filepath.Join(l.root, author)
	titles, err := os.ReadDir(authorDir)
	if err != nil {
		return nil, fmt.Errorf("read author dir %s: %w", author, err)
	}

	var entries []Entry
	for _, t := range titles {
		if !t.IsDir() || strings.HasPrefix(t.Name(), ".") {
			continue
		}
		info, err := t.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s/%s: %w", author, t.Name(), err)
		}
		bookPath := author + "/" + t.Name()
		entries = append(entries, Entry{
			Path:     bookPath,
			Author:   author,
			Title:    t.Name(),
			HasCover: l.HasCover(bookPath),
			ModTime:  info.ModTime().UTC(),
		})
	}
	return entries, nil
}

func (l *Library) stamp(dir string, modTime time.Time) error {
	if modTime.IsZero() {
		return nil
	}
	if err := os.Chtimes(dir, modTime, modTime); err != nil {
		return fmt.Errorf("stamp %s: %w", dir, err)
	}
	return nil
}

func (l *Library) pruneAuthorDir(dir string) {
	if filepath.Clean(dir) == filepath.Clean(l.root) {
		return
	}
	// Remove fails on non-empty directories, which is what we want
	_ = os.Remove(dir)
}
