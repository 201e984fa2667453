package etcdutil

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// ErrConfigMismatch is returned when a task's configuration is already stored
// with different content. Configurations are written once; redelivering the
// same bytes is fine.
var ErrConfigMismatch = errors.New("a different configuration is already published")

// NewClient connects to the etcd cluster at endpoints.
func NewClient(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to etcd %v", endpoints)
	}
	return c, nil
}

// Publisher stores per-task configurations under the job's etcd layout so
// workers can fetch theirs at start-up.
type Publisher struct {
	kv     clientv3.KV
	job    string
	logger *zap.Logger
}

func NewPublisher(kv clientv3.KV, job string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{kv: kv, job: job, logger: logger.With(zap.String("job", job))}
}

// Publish creates the configuration key of taskID. If the key exists it must
// already hold blob.
func (p *Publisher) Publish(ctx context.Context, group, taskID string, blob []byte) error {
	if err := checkNames(group, taskID); err != nil {
		return err
	}
	key := TaskConfigPath(p.job, group, taskID)
	resp, err := p.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(blob))).
		Commit()
	if err != nil {
		return errors.Wrapf(err, "publish %s", key)
	}
	if resp.Succeeded {
		p.logger.Debug("configuration published", zap.String("key", key), zap.Int("bytes", len(blob)))
		return nil
	}

	existing, err := p.Fetch(ctx, group, taskID)
	if err != nil {
		return err
	}
	if !bytes.Equal(existing, blob) {
		return errors.Wrapf(ErrConfigMismatch, "key %s", key)
	}
	return nil
}

// GroupPublished records that every member of group has its configuration.
func (p *Publisher) GroupPublished(ctx context.Context, group string) error {
	if err := groupcomm.CheckPathSegment("group", group); err != nil {
		return err
	}
	key := GroupStatusPath(p.job, group)
	if _, err := p.kv.Put(ctx, key, Published); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	p.logger.Info("group published", zap.String("group", group))
	return nil
}

// Fetch returns the configuration stored for taskID.
func (p *Publisher) Fetch(ctx context.Context, group, taskID string) ([]byte, error) {
	if err := checkNames(group, taskID); err != nil {
		return nil, err
	}
	key := TaskConfigPath(p.job, group, taskID)
	resp, err := p.kv.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	if len(resp.Kvs) == 0 {
		return nil, errors.Errorf("no configuration at %s", key)
	}
	return resp.Kvs[0].Value, nil
}

// PublishedTasks lists the tasks of group with a stored configuration.
func (p *Publisher) PublishedTasks(ctx context.Context, group string) ([]string, error) {
	if err := groupcomm.CheckPathSegment("group", group); err != nil {
		return nil, err
	}
	dir := TaskDir(p.job, group) + "/"
	resp, err := p.kv.Get(ctx, dir, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	var ids []string
	for _, kv := range resp.Kvs {
		rest := strings.TrimPrefix(string(kv.Key), dir)
		if path.Base(rest) != ConfigKey {
			continue
		}
		ids = append(ids, path.Dir(rest))
	}
	sort.Strings(ids)
	return ids, nil
}

// Group names and task ids are single key elements; anything else would
// land outside the job's prefix.
func checkNames(group, taskID string) error {
	if err := groupcomm.CheckPathSegment("group", group); err != nil {
		return err
	}
	return groupcomm.CheckPathSegment("task id", taskID)
}
