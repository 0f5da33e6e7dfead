// Package tail follows a JSON Lines file as it grows and feeds complete
// lines to a callback. It backs the CLI's --follow mode.
package tail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/datapost-io/datapost/pkg/log"
)

// Config holds settings for a Follower.
type Config struct {
	// Path is the file to follow.
	Path string

	// StateDir persists the read offset between runs. Empty disables
	// persistence.
	StateDir string

	// FromStart ignores any persisted offset and reads from the beginning.
	FromStart bool

	// PollInterval is the fallback wakeup when no file events arrive.
	// Default 1s.
	PollInterval time.Duration

	// Logger for progress output. Nil discards.
	Logger log.Logger
}

// Follower reads complete lines from a growing file, resuming from a
// persisted offset. Only whole lines are consumed; a partially written
// trailing line stays in the file until its newline arrives.
type Follower struct {
	cfg   Config
	state *StateFile

	offset  atomic.Int64
	partial bytes.Buffer
}

// New creates a Follower for the configured file.
func New(cfg Config) (*Follower, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("tail: path is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoop()
	}

	f := &Follower{cfg: cfg}
	if cfg.StateDir != "" {
		f.state = NewStateFile(cfg.StateDir)
	}
	return f, nil
}

// Run follows the file until the context is canceled or emit returns an
// error. Each call to emit receives one complete line without its trailing
// newline.
func (f *Follower) Run(ctx context.Context, emit func(line []byte) error) error {
	file, err := os.Open(f.cfg.Path)
	if err != nil {
		return fmt.Errorf("tail: open %s: %w", f.cfg.Path, err)
	}
	defer file.Close()

	if err := f.seekStart(file); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tail: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: events on the file itself are missed if the
	// writer renames or recreates it.
	if err := watcher.Add(filepath.Dir(f.cfg.Path)); err != nil {
		return fmt.Errorf("tail: watch %s: %w", filepath.Dir(f.cfg.Path), err)
	}

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	target, _ := filepath.Abs(f.cfg.Path)

	for {
		if err := f.drain(file, emit); err != nil {
			f.saveState()
			return err
		}
		f.saveState()

		select {
		case <-ctx.Done():
			return nil
		case event := <-watcher.Events:
			if abs, _ := filepath.Abs(event.Name); abs != target {
				continue
			}
			if err := f.checkTruncated(file); err != nil {
				return err
			}
		case err := <-watcher.Errors:
			f.cfg.Logger.Warn("file watcher error", log.Err(err))
		case <-ticker.C:
			if err := f.checkTruncated(file); err != nil {
				return err
			}
		}
	}
}

// Offset returns the byte position of the first unread line.
func (f *Follower) Offset() int64 {
	return f.offset.Load()
}

// seekStart positions the file at the persisted offset, or at the beginning.
func (f *Follower) seekStart(file *os.File) error {
	offset := int64(0)
	if f.state != nil && !f.cfg.FromStart {
		st, err := f.state.Load()
		if err != nil {
			return fmt.Errorf("tail: load state: %w", err)
		}
		if !st.IsEmpty() && st.Path == f.cfg.Path {
			offset = st.Offset
		}
	}

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("tail: stat: %w", err)
	}
	if offset > info.Size() {
		// File was truncated since the offset was saved.
		f.cfg.Logger.Warn("input file shrank, restarting from the beginning",
			log.Int64("offset", offset),
			log.Int64("size", info.Size()),
		)
		offset = 0
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("tail: seek: %w", err)
	}
	f.offset.Store(offset)
	f.cfg.Logger.Info("following input",
		log.String("path", f.cfg.Path),
		log.Int64("offset", offset),
	)
	return nil
}

// drain reads all available complete lines and emits them. The offset only
// advances past lines whose trailing newline has been seen.
func (f *Follower) drain(file *os.File, emit func(line []byte) error) error {
	chunk := make([]byte, 32*1024)
	for {
		n, err := file.Read(chunk)
		if n > 0 {
			f.partial.Write(chunk[:n])
			if lineErr := f.emitLines(emit); lineErr != nil {
				return lineErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tail: read: %w", err)
		}
	}
}

func (f *Follower) emitLines(emit func(line []byte) error) error {
	for {
		i := bytes.IndexByte(f.partial.Bytes(), '\n')
		if i < 0 {
			return nil
		}
		line := f.partial.Next(i + 1)
		trimmed := bytes.TrimRight(line[:i], "\r")
		if len(trimmed) > 0 {
			if err := emit(trimmed); err != nil {
				// Do not advance past the failed line; it is re-read
				// on the next run.
				return err
			}
		}
		f.offset.Add(int64(i + 1))
	}
}

// checkTruncated resets to the beginning when the file shrank below the
// current offset.
func (f *Follower) checkTruncated(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("tail: stat: %w", err)
	}
	if info.Size() >= f.offset.Load() {
		return nil
	}
	f.cfg.Logger.Warn("input file truncated, restarting from the beginning")
	f.offset.Store(0)
	f.partial.Reset()
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("tail: seek: %w", err)
	}
	return nil
}

func (f *Follower) saveState() {
	if f.state == nil {
		return
	}
	if err := f.state.Save(State{Path: f.cfg.Path, Offset: f.offset.Load()}); err != nil {
		f.cfg.Logger.Warn("failed to save read offset", log.Err(err))
	}
}
