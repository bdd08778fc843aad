package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kuitang/todo-e2e/internal/artifacts"
	"github.com/kuitang/todo-e2e/internal/obs"
)

var (
	// ErrGoldenCreated is returned on the first run for a snapshot: the
	// golden is written and the check fails so it gets reviewed.
	ErrGoldenCreated = errors.New("snapshot: golden file created")
	// ErrMismatch is returned when output differs from the golden.
	ErrMismatch = errors.New("snapshot: mismatch")
)

const uploadTimeout = 30 * time.Second

// MismatchError describes a failed comparison.
type MismatchError struct {
	Name       string
	Golden     string
	Actual     string
	Diff       string
	Similarity float64
	// Uploaded lists artifact keys written to the store, if any.
	Uploaded []string
}

func (e *MismatchError) Error() string {
	msg := fmt.Sprintf("snapshot %s differs from %s (similarity %.3f); actual written to %s",
		e.Name, e.Golden, e.Similarity, e.Actual)
	if len(e.Uploaded) > 0 {
		msg += fmt.Sprintf("; uploaded %v", e.Uploaded)
	}
	if e.Diff != "" {
		msg += "\n" + e.Diff
	}
	return msg
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Matcher compares output against golden files under Dir.
type Matcher struct {
	Dir string
	// Update overwrites goldens instead of comparing.
	Update bool
	// Store receives expected/actual copies of mismatches when set.
	Store *artifacts.Store
	// Tolerance is the fraction of screenshot pixels allowed to differ.
	// Zero means DefaultTolerance.
	Tolerance float64
}

// MatchHTML normalizes html and compares it with the golden name.
func (m *Matcher) MatchHTML(t testing.TB, name, html string) {
	t.Helper()
	if err := m.CheckHTML(t.Name(), name, html); err != nil {
		t.Error(err)
	}
}

// MatchScreenshot compares a PNG with the golden name.
func (m *Matcher) MatchScreenshot(t testing.TB, name string, png []byte) {
	t.Helper()
	if err := m.CheckScreenshot(t.Name(), name, png); err != nil {
		t.Error(err)
	}
}

// CheckHTML is MatchHTML returning the outcome instead of failing a test.
func (m *Matcher) CheckHTML(testName, name, html string) error {
	actual := []byte(NormalizeHTML(html))
	return m.check(testName, name, actual, "text/html; charset=utf-8", func(golden []byte) (*MismatchError, error) {
		if string(golden) == string(actual) {
			return nil, nil
		}
		diff, similarity := LineDiff(string(golden), string(actual))
		return &MismatchError{Diff: diff, Similarity: similarity}, nil
	})
}

// CheckScreenshot is MatchScreenshot returning the outcome.
func (m *Matcher) CheckScreenshot(testName, name string, png []byte) error {
	tolerance := m.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return m.check(testName, name, png, "image/png", func(golden []byte) (*MismatchError, error) {
		d, err := ComparePNG(golden, png)
		if err != nil {
			return nil, err
		}
		if d.Ratio() <= tolerance {
			return nil, nil
		}
		mismatch := &MismatchError{
			Diff:       fmt.Sprintf("%d of %dx%d pixels differ (%.4f > tolerance %.4f)", d.Differing, d.Width, d.Height, d.Ratio(), tolerance),
			Similarity: 1 - d.Ratio(),
		}
		if d.Mask != nil {
			maskPath := m.path(name) + ".diff.png"
			if err := os.WriteFile(maskPath, d.Mask, 0o644); err == nil {
				mismatch.Diff += "; mask at " + maskPath
			}
		}
		return mismatch, nil
	})
}

func (m *Matcher) path(name string) string {
	return filepath.Join(m.Dir, filepath.FromSlash(name))
}

func (m *Matcher) check(testName, name string, actual []byte, contentType string, compare func(golden []byte) (*MismatchError, error)) error {
	logger := obs.Pkg("snapshot")
	golden := m.path(name)

	if m.Update {
		if err := writeFile(golden, actual); err != nil {
			return err
		}
		logger.Info("snapshot_updated", "name", name, "test", testName)
		return nil
	}

	expected, err := os.ReadFile(golden)
	if errors.Is(err, os.ErrNotExist) {
		if err := writeFile(golden, actual); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s (review and commit it)", ErrGoldenCreated, golden)
	}
	if err != nil {
		return fmt.Errorf("snapshot: read golden %s: %w", golden, err)
	}

	mismatch, err := compare(expected)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", name, err)
	}
	if mismatch == nil {
		_ = os.Remove(golden + ".actual")
		return nil
	}

	mismatch.Name = name
	mismatch.Golden = golden
	mismatch.Actual = golden + ".actual"
	if err := writeFile(mismatch.Actual, actual); err != nil {
		return err
	}
	mismatch.Uploaded = m.upload(testName, name, expected, actual, contentType)
	logger.Warn("snapshot_mismatch", "name", name, "test", testName, "similarity", mismatch.Similarity)
	return mismatch
}

// upload copies both sides of a mismatch to the artifact store. Upload
// errors are logged; they never mask the mismatch itself.
func (m *Matcher) upload(testName, name string, expected, actual []byte, contentType string) []string {
	if m.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	var keys []string
	sides := []struct {
		suffix  string
		content []byte
	}{
		{".expected", expected},
		{".actual", actual},
	}
	for _, side := range sides {
		a, err := m.Store.Upload(ctx, testName, name+side.suffix, side.content, contentType)
		if err != nil {
			obs.Pkg("snapshot").Warn("snapshot_upload_failed", "test", testName, "file", name+side.suffix, "error", err)
			continue
		}
		keys = append(keys, a.Key)
	}
	return keys
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}
