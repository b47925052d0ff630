package generation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/dep2p/go-dice/internal/util/logger"
	"github.com/dep2p/go-dice/pkg/types"
)

var log = logger.Logger("generation")

// Counter generation 计数来源
type Counter interface {
	// Next 返回本次进程使用的 generation 并持久化
	Next() (uint64, error)
	Close() error
}

// FileName 计数文件名
func FileName(addr types.DiceAddress) string {
	return addr.String() + ".generation"
}

// ============================================================================
//                              File
// ============================================================================

// File 基于文件的计数器
type File struct {
	path string
	lock *flock.Flock

	mu     sync.Mutex
	closed bool
}

var _ Counter = (*File)(nil)

// Open 打开 dir 下 addr 的计数文件并加锁
func Open(dir string, addr types.DiceAddress) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName(addr))
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("generation: lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &File{path: path, lock: lock}, nil
}

// Path 计数文件路径
func (f *File) Path() string {
	return f.path
}

// Next 读取当前值，写回加一后的值并返回它；文件不存在时从 0 开始
func (f *File) Next() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}

	current, exists, err := read(f.path)
	if err != nil {
		return 0, err
	}
	var next uint64
	if exists {
		next = current + 1
	}
	if err := write(f.path, next); err != nil {
		return 0, err
	}
	log.Debug("generation 已推进", "path", f.path, "generation", next)
	return next, nil
}

// Close 释放文件锁
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.lock.Unlock()
}

func read(path string) (uint64, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %s", ErrCorrupt, path)
	}
	return v, true, nil
}

// write 先写临时文件再 rename，崩溃时不会留下半个数字
func write(path string, v uint64) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.WriteString(strconv.FormatUint(v, 10) + "\n"); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}

// ============================================================================
//                              Memory
// ============================================================================

// Memory 不落盘的计数器，用于临时身份
type Memory struct {
	mu   sync.Mutex
	next uint64
}

var _ Counter = (*Memory)(nil)

// NewMemory 从 start 开始计数
func NewMemory(start uint64) *Memory {
	return &Memory{next: start}
}

func (m *Memory) Next() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.next
	m.next++
	return v, nil
}

func (m *Memory) Close() error { return nil }
