package filesystem

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/taskgraph/groupcomm"
	"go.uber.org/zap"
)

const (
	configSuffix = ".conf"
	tmpSuffix    = ".tmp"
	// PublishedMarker is created in a group directory once every member's
	// configuration is in place.
	PublishedMarker = "_PUBLISHED"
)

// ErrConfigMismatch is returned when a task's configuration file already
// exists with different content.
var ErrConfigMismatch = errors.New("a different configuration is already published")

// Publisher writes each task configuration to {root}/{group}/{taskID}.conf.
// Files are written under a temporary name and renamed into place, so a
// worker never reads a partial configuration.
type Publisher struct {
	client Client
	root   string
	logger *zap.Logger
}

func NewPublisher(client Client, root string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, root: root, logger: logger.With(zap.String("root", root))}
}

func (p *Publisher) TaskConfigPath(group, taskID string) string {
	return path.Join(p.root, group, taskID+configSuffix)
}

func (p *Publisher) Publish(ctx context.Context, group, taskID string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkNames(group, taskID); err != nil {
		return err
	}
	name := p.TaskConfigPath(group, taskID)
	exist, err := p.client.Exists(name)
	if err != nil {
		return errors.Wrapf(err, "stat %s", name)
	}
	if exist {
		existing, err := p.Fetch(group, taskID)
		if err != nil {
			return err
		}
		if !bytes.Equal(existing, blob) {
			return errors.Wrapf(ErrConfigMismatch, "file %s", name)
		}
		return nil
	}

	if err := p.client.MkdirAll(path.Dir(name)); err != nil {
		return errors.Wrapf(err, "create directory for %s", name)
	}
	tmp := name + tmpSuffix
	if err := p.write(tmp, blob); err != nil {
		p.client.Remove(tmp)
		return err
	}
	if err := p.client.Rename(tmp, name); err != nil {
		return errors.Wrapf(err, "rename %s", tmp)
	}
	p.logger.Debug("configuration published", zap.String("file", name), zap.Int("bytes", len(blob)))
	return nil
}

func (p *Publisher) write(name string, blob []byte) error {
	w, err := p.client.OpenWriteCloser(name)
	if err != nil {
		return errors.Wrapf(err, "open %s", name)
	}
	if _, err := w.Write(blob); err != nil {
		w.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	return errors.Wrapf(w.Close(), "close %s", name)
}

// GroupPublished drops the marker file into the group directory.
func (p *Publisher) GroupPublished(ctx context.Context, group string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := groupcomm.CheckPathSegment("group", group); err != nil {
		return err
	}
	name := path.Join(p.root, group, PublishedMarker)
	if err := p.client.MkdirAll(path.Dir(name)); err != nil {
		return errors.Wrapf(err, "create directory for %s", name)
	}
	if err := p.write(name, nil); err != nil {
		return err
	}
	p.logger.Info("group published", zap.String("group", group))
	return nil
}

// Fetch reads the configuration of taskID.
func (p *Publisher) Fetch(group, taskID string) ([]byte, error) {
	if err := checkNames(group, taskID); err != nil {
		return nil, err
	}
	name := p.TaskConfigPath(group, taskID)
	r, err := p.client.OpenReadCloser(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return data, nil
}

// PublishedTasks lists the tasks of group with a configuration file.
func (p *Publisher) PublishedTasks(group string) ([]string, error) {
	if err := groupcomm.CheckPathSegment("group", group); err != nil {
		return nil, err
	}
	matches, err := p.client.Glob(path.Join(p.root, group, "*"+configSuffix))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(path.Base(m), configSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Group names and task ids become path elements under the root and must not
// leave it.
func checkNames(group, taskID string) error {
	if err := groupcomm.CheckPathSegment("group", group); err != nil {
		return err
	}
	return groupcomm.CheckPathSegment("task id", taskID)
}
