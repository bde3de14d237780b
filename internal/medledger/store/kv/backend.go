package kv

import "errors"

var ErrKeyNotFound = errors.New("kv: key not found")

// Backend is the host key-value primitive: point reads plus an atomic
// multi-key write.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Write(b *Batch) error
	Close() error
}

type pair struct {
	key   []byte
	value []byte
}

// Batch collects puts that must land together.
type Batch struct {
	puts []pair
}

func (b *Batch) Put(key, value []byte) {
	b.puts = append(b.puts, pair{key: key, value: value})
}

func (b *Batch) Len() int { return len(b.puts) }
