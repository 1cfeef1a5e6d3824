package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/pipeline"
)

// Store hands out per-job scratch workspaces under a shared base directory
// and owns the promotion target for finished videos.
type Store struct {
	scratchBase string
	videosBase  string
	log         *logger.Logger
}

func NewStore(scratchBase, videosBase string, log *logger.Logger) *Store {
	return &Store{
		scratchBase: scratchBase,
		videosBase:  videosBase,
		log:         log.With("service", "scratch_store"),
	}
}

// Open creates <base>/<job_id>/{images,audio,temp} idempotently.
func (s *Store) Open(jobID string) (*Scratch, error) {
	root, err := filepath.Abs(filepath.Join(s.scratchBase, jobID))
	if err != nil {
		return nil, pipeline.NewError(pipeline.KindStorage, "resolve scratch root", err)
	}
	for _, sub := range []string{"images", "audio", "temp"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, pipeline.NewError(pipeline.KindStorage,
				fmt.Sprintf("create scratch dir %s", sub), err)
		}
	}
	return &Scratch{
		jobID:      jobID,
		root:       root,
		videosBase: s.videosBase,
		log:        s.log.With("job_id", jobID),
	}, nil
}

// Scratch is a single job's workspace. Owned by exactly one job; the
// methods are not safe for use after Cleanup.
type Scratch struct {
	jobID      string
	root       string
	videosBase string
	log        *logger.Logger
}

func (sc *Scratch) Root() string      { return sc.root }
func (sc *Scratch) ImagesDir() string { return filepath.Join(sc.root, "images") }
func (sc *Scratch) AudioDir() string  { return filepath.Join(sc.root, "audio") }
func (sc *Scratch) TempDir() string   { return filepath.Join(sc.root, "temp") }

// TempPath names a file inside temp/ for tools that write output themselves
// (scene clips, concat lists). The file is not created.
func (sc *Scratch) TempPath(name string) string {
	return filepath.Join(sc.TempDir(), name)
}

func (sc *Scratch) SaveImage(data []byte, hint string) (string, error) {
	return sc.write(sc.ImagesDir(), hint, ".png", data)
}

func (sc *Scratch) SaveAudio(data []byte, hint string) (string, error) {
	return sc.write(sc.AudioDir(), hint, ".mp3", data)
}

func (sc *Scratch) SaveTemp(data []byte, hint string) (string, error) {
	return sc.write(sc.TempDir(), hint, "", data)
}

// write lands data atomically: temp file in the same subtree, then rename.
func (sc *Scratch) write(dir, hint, ext string, data []byte) (string, error) {
	name := sanitizeHint(hint)
	if ext != "" && !strings.HasSuffix(name, ext) {
		name += ext
	}
	final := filepath.Join(dir, name)
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", pipeline.NewError(pipeline.KindStorage, fmt.Sprintf("write %s", name), err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", pipeline.NewError(pipeline.KindStorage, fmt.Sprintf("rename %s", name), err)
	}
	return final, nil
}

// Promote moves the finished video out of the scratch tree to
// <videos_base>/<job_id>/final.mp4 and fsyncs the containing directory.
func (sc *Scratch) Promote(path string) (string, error) {
	destDir := filepath.Join(sc.videosBase, sc.jobID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", pipeline.NewError(pipeline.KindStorage, "create videos dir", err)
	}
	dest := filepath.Join(destDir, "final.mp4")
	if err := os.Rename(path, dest); err != nil {
		// Rename fails across filesystems; fall back to copy + remove.
		if copyErr := copyFile(path, dest); copyErr != nil {
			return "", pipeline.NewError(pipeline.KindStorage, "promote final video", copyErr)
		}
		_ = os.Remove(path)
	}
	if err := syncDir(destDir); err != nil {
		return "", pipeline.NewError(pipeline.KindStorage, "sync videos dir", err)
	}
	sc.log.Info("Promoted final video", "path", dest)
	return dest, nil
}

// Cleanup removes the whole scratch tree. Partial trees are fine.
func (sc *Scratch) Cleanup() error {
	if err := os.RemoveAll(sc.root); err != nil {
		return pipeline.NewError(pipeline.KindStorage, "remove scratch tree", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, dest)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// sanitizeHint keeps filenames flat and shell-safe.
func sanitizeHint(hint string) string {
	if hint == "" {
		return uuid.NewString()
	}
	var b strings.Builder
	for _, r := range hint {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
