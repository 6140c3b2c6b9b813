package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/rushteam/inferkit/core"
)

var bucketKV = []byte("kv")

// BoltStore 是 BoltDB 实现的 Store，单进程本地持久化（CLI 默认的会话历史）。
//
// 值的前 8 字节是过期时间（unix 纳秒，0 表示不过期），过期的 key 在读取时视为不存在。
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltStore 打开（必要时创建）数据库文件。
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKV); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketKV, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Name() string { return "bolt" }

func (s *BoltStore) encode(value []byte, ttl []int) []byte {
	buf := make([]byte, 8+len(value))
	if len(ttl) > 0 && ttl[0] > 0 {
		expire := s.now().Add(time.Duration(ttl[0]) * time.Second).UnixNano()
		binary.BigEndian.PutUint64(buf, uint64(expire))
	}
	copy(buf[8:], value)
	return buf
}

// decode 返回值副本；bbolt 返回的切片只在事务内有效。
func (s *BoltStore) decode(raw []byte) ([]byte, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	if expire := int64(binary.BigEndian.Uint64(raw)); expire != 0 && s.now().UnixNano() > expire {
		return nil, false
	}
	return append([]byte(nil), raw[8:]...), true
}

func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v, ok := s.decode(tx.Bucket(bucketKV).Get([]byte(key)))
		if !ok {
			return core.ErrStoreNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (s *BoltStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), s.encode(value, ttl))
	})
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
}

func (s *BoltStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		for _, k := range keys {
			if v, ok := s.decode(b.Get([]byte(k))); ok {
				result[k] = v
			}
		}
		return nil
	})
	return result, err
}

func (s *BoltStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		for k, v := range kvs {
			if err := b.Put([]byte(k), s.encode(v, ttl)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Purge 删除所有已过期的 key，返回删除数量。
func (s *BoltStore) Purge(ctx context.Context) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketKV)
		var expired [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if _, ok := s.decode(v); !ok {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(expired)
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ core.Store = (*BoltStore)(nil)
