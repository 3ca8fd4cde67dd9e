// Package state persists a per-conversation transcript of handled events.
// The transcript is diagnostic: the live session state is in memory, the log
// is what operators read after the fact.
package state

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/deckhand/internal/types"
)

// Record is one handled event: what arrived and what the router did with it.
type Record struct {
	At      time.Time        `json:"at"`
	EventID types.EventID    `json:"event_id"`
	Key     types.SessionKey `json:"key"`
	Action  string           `json:"action"`
	Text    string           `json:"text,omitempty"`
	Detail  string           `json:"detail,omitempty"`
}

// Log is a JSONL-backed append-only transcript store. Records are kept
// per-conversation in conversations/<key>.jsonl under the root directory.
type Log struct {
	root  string
	mu    sync.Mutex
	locks map[types.SessionKey]*sync.Mutex
}

// NewLog creates a file-backed Log rooted at the given directory.
func NewLog(root string) *Log {
	return &Log{
		root:  root,
		locks: make(map[types.SessionKey]*sync.Mutex),
	}
}

// keyLock returns the per-conversation mutex, creating one on first use.
func (l *Log) keyLock(key types.SessionKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lock, ok := l.locks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	l.locks[key] = lock
	return lock
}

func (l *Log) dir() string {
	return filepath.Join(l.root, "conversations")
}

func (l *Log) path(key types.SessionKey) string {
	name := strings.ReplaceAll(string(key), string(os.PathSeparator), "_")
	return filepath.Join(l.dir(), name+".jsonl")
}

// Append adds a record to the conversation's transcript.
func (l *Log) Append(rec *Record) error {
	lock := l.keyLock(rec.Key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(l.dir(), 0o755); err != nil {
		return fmt.Errorf("create conversations dir: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(l.path(rec.Key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Tail returns the last N records for the given conversation.
func (l *Log) Tail(key types.SessionKey, limit int) ([]*Record, error) {
	lock := l.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(l.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Keys lists the conversations that have a transcript, sorted.
func (l *Log) Keys() ([]types.SessionKey, error) {
	entries, err := os.ReadDir(l.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read conversations dir: %w", err)
	}

	var keys []types.SessionKey
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		keys = append(keys, types.SessionKey(strings.TrimSuffix(name, ".jsonl")))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}
