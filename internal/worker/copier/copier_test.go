package copier_test

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mpifilter/internal/log"
	"github.com/slok/mpifilter/internal/model"
	"github.com/slok/mpifilter/internal/utils/file"
	"github.com/slok/mpifilter/internal/worker/copier"
)

// failingFileOps fails the operations on the configured names.
type failingFileOps struct {
	failCopy   map[string]bool
	failRemove map[string]bool
}

func (f failingFileOps) RemoveAll(path string) error {
	if f.failRemove[filepath.Base(path)] {
		return errors.New("remove denied")
	}
	return os.RemoveAll(path)
}

func (f failingFileOps) CopyFile(src, dst string) (int64, error) {
	if f.failCopy[filepath.Base(src)] {
		return 0, errors.New("disk full")
	}
	return file.Copy(src, dst)
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

type runResult struct {
	logs      []string
	progress  []int
	copied    []string
	completed bool
	err       error
	terminals int
}

func run(t *testing.T, w *copier.Worker) runResult {
	t.Helper()

	events, err := w.Start()
	require.NoError(t, err)

	var res runResult
	for e := range events {
		require.Zero(t, res.terminals, "no events are allowed after the terminal event")
		switch ev := e.(type) {
		case model.LogLine:
			res.logs = append(res.logs, ev.Text)
		case model.Progress:
			res.progress = append(res.progress, ev.Percent)
		case model.Completion[[]string]:
			res.copied = ev.Result
			res.completed = true
			res.terminals++
		case model.Failure:
			res.err = ev.Err
			res.terminals++
		default:
			t.Fatalf("unexpected event %T", e)
		}
	}
	require.Equal(t, 1, res.terminals)

	return res
}

func TestWorker(t *testing.T) {
	tests := map[string]struct {
		src         map[string]string
		dst         map[string]string
		ext         string
		fileOps     copier.FileOps
		expCopied   []string
		expProgress []int
		expDst      []string
		expErr      error
		expLogs     int
	}{
		"Matching images should be copied and stale files removed": {
			src:         map[string]string{"a.bmp": "aaa", "b.bmp": "bbb", "c.txt": "ccc"},
			dst:         map[string]string{"old.bmp": "old"},
			expCopied:   []string{"a.bmp", "b.bmp"},
			expProgress: []int{50, 100},
			expDst:      []string{"a.bmp", "b.bmp"},
		},

		"The extension should match case-insensitively": {
			src:         map[string]string{"A.BMP": "a", "b.Bmp": "b", "c.png": "c"},
			expCopied:   []string{"A.BMP", "b.Bmp"},
			expProgress: []int{50, 100},
			expDst:      []string{"A.BMP", "b.Bmp"},
		},

		"A custom extension should be used": {
			src:         map[string]string{"a.bmp": "a", "b.png": "b"},
			ext:         "png",
			expCopied:   []string{"b.png"},
			expProgress: []int{100},
			expDst:      []string{"b.png"},
		},

		"No matching images should fail without touching the destination": {
			src:    map[string]string{"c.txt": "ccc"},
			dst:    map[string]string{"old.bmp": "old"},
			expErr: model.ErrNoValidImages,
			expDst: []string{"old.bmp"},
		},

		"A partial copy failure should be logged and excluded from the result": {
			src:         map[string]string{"a.bmp": "a", "b.bmp": "b", "c.bmp": "c", "d.bmp": "d"},
			fileOps:     failingFileOps{failCopy: map[string]bool{"b.bmp": true}},
			expCopied:   []string{"a.bmp", "c.bmp", "d.bmp"},
			expProgress: []int{25, 50, 75, 100},
			expDst:      []string{"a.bmp", "c.bmp", "d.bmp"},
			expLogs:     1,
		},

		"All copies failing should complete with an empty result": {
			src:         map[string]string{"a.bmp": "a", "b.bmp": "b"},
			fileOps:     failingFileOps{failCopy: map[string]bool{"a.bmp": true, "b.bmp": true}},
			expCopied:   []string{},
			expProgress: []int{50, 100},
			expDst:      []string{},
			expLogs:     2,
		},

		"A removal failure should be logged and the copy should continue": {
			src:         map[string]string{"a.bmp": "a"},
			dst:         map[string]string{"locked.bmp": "x", "old.bmp": "y"},
			fileOps:     failingFileOps{failRemove: map[string]bool{"locked.bmp": true}},
			expCopied:   []string{"a.bmp"},
			expProgress: []int{100},
			expDst:      []string{"a.bmp", "locked.bmp"},
			expLogs:     1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			srcDir, dstDir := t.TempDir(), t.TempDir()
			writeFiles(t, srcDir, test.src)
			writeFiles(t, dstDir, test.dst)

			w, err := copier.NewWorker(copier.WorkerConfig{
				Task:    model.CopyTask{SourceDir: srcDir, DestDir: dstDir, Extension: test.ext},
				FileOps: test.fileOps,
				Logger:  log.Noop,
			})
			require.NoError(err)

			res := run(t, w)

			if test.expErr != nil {
				assert.ErrorIs(res.err, test.expErr)
				assert.False(res.completed)
				assert.Empty(res.progress)
			} else {
				require.NoError(res.err)
				assert.True(res.completed)
				assert.Equal(test.expCopied, res.copied)
				assert.Equal(test.expProgress, res.progress)
			}
			assert.Len(res.logs, test.expLogs)
			assert.Equal(test.expDst, dirNames(t, dstDir))

			// Every copied name must be byte identical to its source.
			for _, name := range res.copied {
				exp, err := os.ReadFile(filepath.Join(srcDir, name))
				require.NoError(err)
				got, err := os.ReadFile(filepath.Join(dstDir, name))
				require.NoError(err)
				assert.Equal(exp, got)
			}
		})
	}
}

func TestWorkerMissingSourceDirShouldFail(t *testing.T) {
	w, err := copier.NewWorker(copier.WorkerConfig{
		Task: model.CopyTask{SourceDir: filepath.Join(t.TempDir(), "missing"), DestDir: t.TempDir()},
	})
	require.NoError(t, err)

	res := run(t, w)
	assert.Error(t, res.err)
	assert.NotErrorIs(t, res.err, model.ErrNoValidImages)
}

func TestWorkerCanOnlyStartOnce(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"a.bmp": "a"})

	w, err := copier.NewWorker(copier.WorkerConfig{
		Task: model.CopyTask{SourceDir: src, DestDir: t.TempDir()},
	})
	require.NoError(t, err)

	_ = run(t, w)
	_, err = w.Start()
	assert.ErrorIs(t, err, model.ErrAlreadyStarted)
}

func TestNewWorkerConfig(t *testing.T) {
	tests := map[string]struct {
		task   model.CopyTask
		expErr bool
	}{
		"Valid task should create the worker": {
			task: model.CopyTask{SourceDir: "/src", DestDir: "/dst"},
		},
		"Missing source dir should fail": {
			task:   model.CopyTask{DestDir: "/dst"},
			expErr: true,
		},
		"Missing destination dir should fail": {
			task:   model.CopyTask{SourceDir: "/src"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			w, err := copier.NewWorker(copier.WorkerConfig{Task: test.task})
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, w)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, model.TaskKindCopy, w.Kind())
			}
		})
	}
}

func TestFindImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"b.bmp": "b", "a.BMP": "a", "notes.txt": "n"})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.bmp"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "b.bmp"), filepath.Join(dir, "link.bmp")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing.bmp"), filepath.Join(dir, "dangling.bmp")))

	got, err := copier.FindImages(dir, ".bmp")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.BMP", "b.bmp", "link.bmp"}, got)
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, ".bmp", copier.NormalizeExtension(""))
	assert.Equal(t, ".png", copier.NormalizeExtension("png"))
	assert.Equal(t, ".PNG", copier.NormalizeExtension(".PNG"))
}
