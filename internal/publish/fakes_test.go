package publish_test

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/NAREN-BHARGAV/CodeBlueHalo/internal/store"
)

// fakeKVStore 仅用于单元测试（内存 KV + TTL）
type fakeKVStore struct {
	mu   sync.Mutex
	data map[string]fakeKVItem
}

type fakeKVItem struct {
	value   string
	ttl     time.Duration
	expires time.Time // zero = no ttl
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]fakeKVItem)}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.data[key]
	if !ok {
		return "", store.ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", store.ErrCacheMiss
	}
	return item.value, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, ttl: ttl, expires: exp}
	return nil
}

func (f *fakeKVStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type fakeStreamWriter struct {
	stream string
	data   []interface{}
	err    error
}

func (f *fakeStreamWriter) PublishJSON(ctx context.Context, stream string, data interface{}) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.stream = stream
	f.data = append(f.data, data)
	return "1700000000000-0", nil
}

type mqttMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	messages []mqttMessage
	fail     bool
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if f.fail {
		return errors.New("not connected")
	}
	f.messages = append(f.messages, mqttMessage{topic: topic, qos: qos, retained: retained, payload: payload})
	return nil
}
