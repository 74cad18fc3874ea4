// Package content lists the playable clip bundles and picks the next one for
// a round.
//
// Bundles live in a directory tree laid out as
//
//	<root>/<language>/<difficulty>/<bundle>/audio.mp3
//	<root>/<language>/<difficulty>/<bundle>/answer.txt
//	<root>/<language>/<difficulty>/<bundle>/dialect.txt   (optional)
//
// The bundle directory name is the asset ID used for cooldown bookkeeping.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/MrWong99/dictee/internal/game"
)

// Bundle file names.
const (
	AudioFile   = "audio.mp3"
	AnswerFile  = "answer.txt"
	DialectFile = "dialect.txt"
)

// Catalog lists assets and checks that a listed asset is playable.
type Catalog interface {
	// Assets returns every bundle under lang and difficulty.
	Assets(lang game.Language, d game.Difficulty) ([]game.Asset, error)

	// Probe returns an error if a's audio or answer cannot be read.
	Probe(a game.Asset) error
}

// Compile-time interface assertion.
var _ Catalog = (*FSCatalog)(nil)

// FSCatalog is a [Catalog] backed by an [fs.FS], usually [os.DirFS] of the
// configured content root.
type FSCatalog struct {
	fsys fs.FS
}

// NewFSCatalog returns a catalog reading bundles from fsys.
func NewFSCatalog(fsys fs.FS) *FSCatalog {
	return &FSCatalog{fsys: fsys}
}

// Assets implements [Catalog]. Plain files next to the bundle directories
// are ignored.
func (c *FSCatalog) Assets(lang game.Language, d game.Difficulty) ([]game.Asset, error) {
	dir := path.Join(string(lang), string(d))
	entries, err := fs.ReadDir(c.fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("content: list %s: %w", dir, err)
	}
	assets := make([]game.Asset, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		assets = append(assets, game.Asset{
			ID:         e.Name(),
			Language:   lang,
			Difficulty: d,
			Dir:        path.Join(dir, e.Name()),
		})
	}
	return assets, nil
}

// Probe implements [Catalog].
func (c *FSCatalog) Probe(a game.Asset) error {
	for _, name := range []string{AudioFile, AnswerFile} {
		info, err := fs.Stat(c.fsys, path.Join(a.Dir, name))
		if err != nil {
			return fmt.Errorf("content: probe %s: %w", a.Dir, err)
		}
		if info.IsDir() || info.Size() == 0 {
			return fmt.Errorf("content: probe %s: %s is empty", a.Dir, name)
		}
	}
	return nil
}

// Answer returns the reference transcript of a with surrounding whitespace
// removed.
func (c *FSCatalog) Answer(a game.Asset) (string, error) {
	b, err := fs.ReadFile(c.fsys, path.Join(a.Dir, AnswerFile))
	if err != nil {
		return "", fmt.Errorf("content: read answer %s: %w", a.Dir, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Dialect returns the optional accent note shipped with a, or "" if the
// bundle has none.
func (c *FSCatalog) Dialect(a game.Asset) (string, error) {
	b, err := fs.ReadFile(c.fsys, path.Join(a.Dir, DialectFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("content: read dialect %s: %w", a.Dir, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// OpenAudio opens the clip of a. The caller must close it.
func (c *FSCatalog) OpenAudio(a game.Asset) (fs.File, error) {
	f, err := c.fsys.Open(path.Join(a.Dir, AudioFile))
	if err != nil {
		return nil, fmt.Errorf("content: open audio %s: %w", a.Dir, err)
	}
	return f, nil
}

// OpenFile opens a file relative to the content root, such as a feedback cue.
func (c *FSCatalog) OpenFile(name string) (fs.File, error) {
	f, err := c.fsys.Open(path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("content: open %s: %w", name, err)
	}
	return f, nil
}
