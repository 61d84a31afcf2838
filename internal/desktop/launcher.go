package desktop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	log "log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/shlex"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/ini.v1"
)

var ErrAppNotFound = errors.New("application not found")

// App is one launchable entry of the index.
type App struct {
	Name string
	Exec []string
	From string // .desktop file or PATH directory
}

// Index maps lowercase application names to launch commands.
type Index struct {
	apps  map[string]App
	names []string
}

func NewIndex(apps []App) *Index {
	idx := &Index{apps: make(map[string]App, len(apps))}
	for _, a := range apps {
		key := strings.ToLower(strings.TrimSpace(a.Name))
		if key == "" || len(a.Exec) == 0 {
			continue
		}
		// Desktop entries are scanned first and win over bare binaries.
		if _, ok := idx.apps[key]; ok {
			continue
		}
		idx.apps[key] = a
		idx.names = append(idx.names, key)
	}
	sort.Strings(idx.names)
	return idx
}

func (idx *Index) Len() int { return len(idx.names) }

// Apps lists the index sorted by name.
func (idx *Index) Apps() []App {
	out := make([]App, 0, len(idx.names))
	for _, n := range idx.names {
		out = append(out, idx.apps[n])
	}
	return out
}

// Lookup resolves an approximate name to the closest indexed app: an
// exact name first, then the best fuzzy match of name inside an indexed
// name, then the best fuzzy match the other way round.
func (idx *Index) Lookup(name string) (App, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return App{}, ErrAppNotFound
	}
	if a, ok := idx.apps[name]; ok {
		return a, nil
	}

	if ranks := fuzzy.RankFindNormalizedFold(name, idx.names); len(ranks) > 0 {
		sort.Sort(ranks)
		return idx.apps[ranks[0].Target], nil
	}

	best, bestDist := "", -1
	for _, n := range idx.names {
		if d := fuzzy.RankMatchNormalizedFold(n, name); d >= 0 && (bestDist < 0 || d < bestDist) {
			best, bestDist = n, d
		}
	}
	if bestDist >= 0 {
		return idx.apps[best], nil
	}

	return App{}, fmt.Errorf("%w: %q", ErrAppNotFound, name)
}

// ScanSystem indexes XDG desktop entries and executables on $PATH.
func ScanSystem() *Index {
	var apps []App
	for _, dir := range applicationDirs() {
		apps = append(apps, scanDesktopDir(dir)...)
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		apps = append(apps, scanBinDir(dir)...)
	}
	return NewIndex(apps)
}

func applicationDirs() []string {
	var dirs []string

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}

	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, d := range filepath.SplitList(dataDirs) {
		dirs = append(dirs, filepath.Join(d, "applications"))
	}

	return dirs
}

func scanDesktopDir(dir string) []App {
	var apps []App
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".desktop" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		if a, ok := ParseDesktopEntry(f); ok {
			a.From = path
			apps = append(apps, a)
		}
		return nil
	})
	return apps
}

func scanBinDir(dir string) []App {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var apps []App
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}
		apps = append(apps, App{
			Name: e.Name(),
			Exec: []string{filepath.Join(dir, e.Name())},
			From: dir,
		})
	}
	return apps
}

// ParseDesktopEntry reads the Name and Exec keys of the [Desktop Entry]
// group. Hidden and NoDisplay entries are skipped.
func ParseDesktopEntry(r io.Reader) (App, bool) {
	data, err := io.ReadAll(r)
	if err != nil {
		return App{}, false
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:      "=",
		IgnoreInlineComment:     true,
		PreserveSurroundedQuote: true,
		SkipUnrecognizableLines: true,
	}, data)
	if err != nil {
		log.Debug("Bad desktop entry", "err", err)
		return App{}, false
	}

	sec, err := f.GetSection("Desktop Entry")
	if err != nil {
		return App{}, false
	}
	if sec.Key("NoDisplay").MustBool(false) || sec.Key("Hidden").MustBool(false) {
		return App{}, false
	}

	a := App{
		Name: strings.TrimSpace(sec.Key("Name").String()),
		Exec: execArgs(sec.Key("Exec").String()),
	}
	if a.Name == "" || len(a.Exec) == 0 {
		return App{}, false
	}
	return a, true
}

// execArgs splits an Exec value into argv and drops the %f/%u style
// field codes.
func execArgs(val string) []string {
	fields, err := shlex.Split(val)
	if err != nil {
		log.Debug("Bad Exec value", "exec", val, "err", err)
		return nil
	}

	var args []string
	for _, f := range fields {
		if len(f) == 2 && f[0] == '%' {
			continue
		}
		args = append(args, f)
	}
	return args
}

// Launcher starts applications by approximate name. The system index is
// built on first use.
type Launcher struct {
	once  sync.Once
	scan  func() *Index
	index *Index
	start func(argv []string) error
}

func NewLauncher() *Launcher {
	return &Launcher{scan: ScanSystem, start: startDetached}
}

// NewLauncherWithIndex uses a prebuilt index.
func NewLauncherWithIndex(idx *Index) *Launcher {
	return &Launcher{
		scan:  func() *Index { return idx },
		start: startDetached,
	}
}

func (l *Launcher) Index() *Index {
	l.once.Do(func() {
		l.index = l.scan()
		log.Debug("Indexed applications", "count", l.index.Len())
	})
	return l.index
}

func (l *Launcher) Launch(_ context.Context, name string) error {
	app, err := l.Index().Lookup(name)
	if err != nil {
		return err
	}

	log.Info("Launching application", "query", name, "app", app.Name, "exec", app.Exec)

	if err := l.start(app.Exec); err != nil {
		return fmt.Errorf("start %s: %w", app.Name, err)
	}
	return nil
}

// startDetached starts argv without waiting for it. The child outlives
// the request, so it is not bound to a context.
func startDetached(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
