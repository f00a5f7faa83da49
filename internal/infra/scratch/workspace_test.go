package scratch

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfconvert/internal/domain"
	"pdfconvert/internal/infra/logging"
)

func TestAcquire_CreatesEmptyUniqueFiles(t *testing.T) {
	m := NewManager(t.TempDir())

	in, err := m.Acquire(domain.ScratchInput)
	require.NoError(t, err)
	out, err := m.Acquire(domain.ScratchOutput)
	require.NoError(t, err)

	assert.NotEqual(t, in.Path, out.Path)
	assert.Equal(t, m.Dir(), filepath.Dir(in.Path))
	assert.True(t, strings.HasSuffix(in.Path, ".html"))
	assert.True(t, strings.HasSuffix(out.Path, ".pdf"))
	assert.Equal(t, domain.ScratchInput, in.Kind)
	assert.Equal(t, domain.ScratchOutput, out.Kind)

	st, err := os.Stat(out.Path)
	require.NoError(t, err)
	assert.Zero(t, st.Size())

	n, err := m.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAcquire_FailsOnMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing"))
	_, err := m.Acquire(domain.ScratchInput)
	assert.Error(t, err)
}

func TestNewManager_DefaultsToTempDir(t *testing.T) {
	assert.Equal(t, os.TempDir(), NewManager("").Dir())
}

func TestRelease_RemovesAndToleratesMissingFile(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(logging.SetLoggerForTest(zerolog.New(zerolog.SyncWriter(&buf)).Level(zerolog.DebugLevel)))

	m := NewManager(t.TempDir())
	f, err := m.Acquire(domain.ScratchInput)
	require.NoError(t, err)

	m.Release(f)
	_, err = os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))

	// Second release must not panic nor escalate.
	m.Release(f)
	m.Release(domain.ScratchFile{})
	assert.Contains(t, buf.String(), "Scratch file already gone")
}

func TestRelease_LogsUnexpectedFailures(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(logging.SetLoggerForTest(zerolog.New(zerolog.SyncWriter(&buf))))

	dir := t.TempDir()
	// A non-empty directory cannot be removed with os.Remove.
	sub := filepath.Join(dir, "pdfconvert-dir.pdf")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "child"), 0o755))

	NewManager(dir).Release(domain.ScratchFile{Path: sub, Kind: domain.ScratchOutput})
	assert.Contains(t, buf.String(), "Failed to remove scratch file")
}

func TestScope_CloseReleasesEverythingOnce(t *testing.T) {
	m := NewManager(t.TempDir())
	scope := m.NewScope()

	in, err := scope.Acquire(domain.ScratchInput)
	require.NoError(t, err)
	_, err = scope.Acquire(domain.ScratchOutput)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in.Path, []byte("<p>hi</p>"), 0o600))

	scope.Close()
	scope.Close()

	n, err := m.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = scope.Acquire(domain.ScratchInput)
	assert.Error(t, err, "closed scope must refuse new files")
	n, _ = m.Count()
	assert.Zero(t, n)
}

func TestScope_ConcurrentScopesNeverCollide(t *testing.T) {
	m := NewManager(t.TempDir())

	const workers = 50
	paths := make(chan string, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scope := m.NewScope()
			defer scope.Close()
			for _, k := range []domain.ScratchKind{domain.ScratchInput, domain.ScratchOutput} {
				f, err := scope.Acquire(k)
				if err != nil {
					t.Errorf("acquire: %v", err)
					return
				}
				paths <- f.Path
			}
		}()
	}
	wg.Wait()
	close(paths)

	seen := map[string]bool{}
	for p := range paths {
		assert.False(t, seen[p], "duplicate scratch path %s", p)
		seen[p] = true
	}
	assert.Len(t, seen, workers*2)

	n, err := m.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScope_ConcurrentCloseLogsSafely(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(logging.SetLoggerForTest(zerolog.New(zerolog.SyncWriter(&buf)).Level(zerolog.DebugLevel)))

	m := NewManager(t.TempDir())
	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scope := m.NewScope()
			f, err := scope.Acquire(domain.ScratchOutput)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			// Deleted behind the scope's back, so Close logs while others do too.
			_ = os.Remove(f.Path)
			scope.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, strings.Count(buf.String(), "Scratch file already gone"))
	n, err := m.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}
