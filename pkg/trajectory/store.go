package trajectory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/gwillem/lerobot-record/pkg/robot"
)

// ErrNoRecordings means replay was requested but nothing has ever been saved.
var ErrNoRecordings = errors.New("no recordings found")

// filePattern matches stored trajectory names: raw_ plus a three-digit
// zero-padded sequential index, no extension.
var filePattern = regexp.MustCompile(`^raw_(\d{3})$`)

// Store persists trajectories under a records directory with sequential
// file names. Single writer: concurrent allocation is not supported.
type Store struct {
	dir    string
	joints int
}

// NewStore opens (creating if needed) a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create records dir: %w", err)
	}
	return &Store{dir: dir, joints: robot.NumJoints}, nil
}

// Dir returns the records directory.
func (s *Store) Dir() string {
	return s.dir
}

// AllocatePath returns the path for the next recording: one past the highest
// existing index, or raw_000 when the directory holds no recordings yet.
func (s *Store) AllocatePath() (string, error) {
	next := 0
	names, err := s.names()
	if err != nil {
		return "", err
	}
	if len(names) > 0 {
		last := names[len(names)-1]
		idx, _ := indexOf(last)
		next = idx + 1
	}
	return filepath.Join(s.dir, fmt.Sprintf("raw_%03d", next)), nil
}

// Save writes the trajectory to path as one atomic unit: the data goes to a
// temp file in the same directory and is renamed into place, so Load never
// observes a partial trajectory.
func (s *Store) Save(path string, traj *Trajectory) error {
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := traj.Encode(tmp, s.joints); err != nil {
		tmp.Close()
		return fmt.Errorf("encode trajectory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Load reads a trajectory wholesale. Returns ErrCorrupt (wrapped) if the
// stored shape disagrees with the configured joint count.
func (s *Store) Load(path string) (*Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trajectory: %w", err)
	}
	defer f.Close()

	traj, err := Decode(f, s.joints)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return traj, nil
}

// Latest returns the path of the lexicographically last recording, or
// ErrNoRecordings if the directory holds none.
func (s *Store) Latest() (string, error) {
	names, err := s.names()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoRecordings
	}
	return filepath.Join(s.dir, names[len(names)-1]), nil
}

// Entry describes one stored trajectory, for listings.
type Entry struct {
	Name    string
	Path    string
	Frames  int
	Size    int64
	ModTime time.Time
}

// List returns all stored trajectories in name order. Frame counts come
// from file headers; unreadable files are reported with Frames = -1 rather
// than failing the whole listing.
func (s *Store) List() ([]Entry, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		e := Entry{Name: name, Path: path, Frames: -1}
		if info, err := os.Stat(path); err == nil {
			e.Size = info.Size()
			e.ModTime = info.ModTime()
		}
		if traj, err := s.Load(path); err == nil {
			e.Frames = traj.Len()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// names returns matching file names in the records dir, sorted ascending.
func (s *Store) names() ([]string, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read records dir: %w", err)
	}

	var names []string
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		if filePattern.MatchString(de.Name()) {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func indexOf(name string) (int, bool) {
	m := filePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return idx, true
}
