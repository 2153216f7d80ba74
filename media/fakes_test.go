package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/gracechurch/mediakit/media/metadata"
	"github.com/gracechurch/mediakit/media/network"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("503 service unavailable")

type putCall struct {
	bucket string
	key    string
	size   int64
	opts   network.PutOptions
}

// fakeBlobStore keeps objects in memory and reports progress at half and full size.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []putCall
	removed []string

	// putErrs are returned by the first len(putErrs) PutObject calls, nil entries succeed.
	putErrs []error
	// failKey makes every put of that key fail.
	failKey   string
	removeErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) PutObject(_ context.Context, bucket, key string, body io.ReaderAt, size int64, opts network.PutOptions) error {
	f.mu.Lock()
	call := len(f.puts)
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, size: size, opts: opts})
	f.mu.Unlock()

	if call < len(f.putErrs) && f.putErrs[call] != nil {
		if opts.OnProgress != nil {
			opts.OnProgress(size/4, size)
		}
		return f.putErrs[call]
	}
	if key == f.failKey {
		return errTransient
	}

	data, err := io.ReadAll(io.NewSectionReader(body, 0, size))
	if err != nil {
		return err
	}
	if opts.OnProgress != nil {
		opts.OnProgress(size/2, size)
		opts.OnProgress(size, size)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[bucket+"/"+key]; ok && !opts.Upsert {
		return network.ErrObjectExists
	}
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeBlobStore) RemoveObject(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, bucket+"/"+key)
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeBlobStore) PublicURL(bucket, key string) string {
	return "https://project.example.co/storage/v1/object/public/" + bucket + "/" + key
}

func (f *fakeBlobStore) putKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, p := range f.puts {
		keys = append(keys, p.key)
	}
	return keys
}

type fakeRepository struct {
	mu        sync.Mutex
	records   []metadata.Record
	inserts   int
	insertErr error
	deleteErr error
}

func (r *fakeRepository) Insert(_ context.Context, record metadata.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return r.insertErr
	}
	r.records = append(r.records, record)
	return nil
}

func (r *fakeRepository) Delete(_ context.Context, bucket, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	var kept []metadata.Record
	for _, rec := range r.records {
		if rec.Bucket != bucket || rec.Path != path {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

func (r *fakeRepository) List(_ context.Context, opts metadata.ListOptions) ([]metadata.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []metadata.Record
	for _, rec := range r.records {
		if rec.Bucket == opts.Bucket {
			found = append(found, rec)
		}
	}
	return found, nil
}

type fakeMerger struct {
	requests []network.MergeRequest
	err      error
}

func (m *fakeMerger) MergeChunks(_ context.Context, req network.MergeRequest) error {
	m.requests = append(m.requests, req)
	return m.err
}

// fakeDownloader records the last request and writes content to dest when set.
type fakeDownloader struct {
	url, dest string
	content   []byte
	err       error
}

func (d *fakeDownloader) Download(_ context.Context, url, dest string) error {
	d.url, d.dest = url, dest
	if d.err != nil {
		return d.err
	}
	if d.content != nil {
		return os.WriteFile(dest, d.content, 0600)
	}
	return nil
}

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	return repo.envVars[key]
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	delete(repo.envVars, key)
	return nil
}

func (repo fakeEnvRepo) List() []string {
	var envs []string
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(envs)
	return envs
}

// progressRecorder collects reported percentages.
type progressRecorder struct {
	mu     sync.Mutex
	values []float64
}

func (p *progressRecorder) report(percent float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, percent)
}

func (p *progressRecorder) requireNonDecreasing(t *testing.T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 1; i < len(p.values); i++ {
		require.GreaterOrEqual(t, p.values[i], p.values[i-1], "progress went backwards at %d: %v", i, p.values)
	}
}

func (p *progressRecorder) last() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.values) == 0 {
		return -1
	}
	return p.values[len(p.values)-1]
}

type testService struct {
	*Service
	store  *fakeBlobStore
	repo   *fakeRepository
	merge  *fakeMerger
	sleeps []time.Duration
}

func newTestService(t *testing.T, config Config) *testService {
	ts := &testService{
		store: newFakeBlobStore(),
		repo:  &fakeRepository{},
		merge: &fakeMerger{},
	}
	service, err := NewService(ts.store, ts.repo, ts.merge, &fakeDownloader{}, config, log.NewLogger())
	require.NoError(t, err)

	service.sleep = func(ctx context.Context, d time.Duration) error {
		ts.sleeps = append(ts.sleeps, d)
		return ctx.Err()
	}
	service.now = func() time.Time {
		return time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC)
	}
	service.newKey = func(folder, fileName string) string {
		return objectKey(folder, fileName, "key-"+strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	}
	ts.Service = service
	return ts
}
