package filesystem

import (
	"io"
	"path"
	"strings"

	"github.com/colinmarc/hdfs/v2"
	"github.com/pkg/errors"
)

// Requirement:
//   Hadoop/HDFS version: 2 or later, reachable over the namenode RPC port.

type HdfsClient struct {
	client *hdfs.Client
}

func NewHdfsClient(namenodeAddr, user string) (Client, error) {
	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: []string{namenodeAddr},
		User:      user,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to namenode %s", namenodeAddr)
	}
	return &HdfsClient{client: client}, nil
}

func (c *HdfsClient) OpenReadCloser(name string) (io.ReadCloser, error) {
	f, err := c.client.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *HdfsClient) OpenWriteCloser(name string) (io.WriteCloser, error) {
	exist, err := c.Exists(name)
	if err != nil {
		return nil, err
	}
	if exist {
		if err := c.client.Remove(name); err != nil {
			return nil, err
		}
	}
	f, err := c.client.Create(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *HdfsClient) Exists(name string) (bool, error) {
	_, err := c.client.Stat(name)
	return existCommon(err)
}

// HDFS refuses to rename onto an existing file, so the target goes first.
func (c *HdfsClient) Rename(oldpath, newpath string) error {
	exist, err := c.Exists(newpath)
	if err != nil {
		return err
	}
	if exist {
		if err := c.client.Remove(newpath); err != nil {
			return err
		}
	}
	return c.client.Rename(oldpath, newpath)
}

func (c *HdfsClient) Remove(name string) error {
	return c.client.Remove(name)
}

func (c *HdfsClient) MkdirAll(dir string) error {
	return c.client.MkdirAll(dir, 0o755)
}

// Glob only supports '*' and '?', e.g. /user/hdfs/etl*/part.*
func (c *HdfsClient) Glob(pattern string) (matches []string, err error) {
	if pattern == "" {
		return nil, errors.New("Glob pattern shouldn't be empty")
	}
	if pattern[len(pattern)-1] == '/' {
		return nil, errors.New("Glob pattern shouldn't be a directory")
	}
	// names will have all the pathnames of the pattern.
	// e.g. "/a/b/c" => [a, b, c]
	names := strings.Split(strings.TrimPrefix(path.Clean(pattern), "/"), "/")
	return c.glob("/", names)
}

func (c *HdfsClient) glob(dir string, names []string) (m []string, err error) {
	name := names[0]
	var dirs []string
	if hasMeta(name) {
		fileInfos, err := c.client.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, fi := range fileInfos {
			matched, err := path.Match(name, fi.Name())
			if err != nil {
				return nil, err
			}
			if matched {
				dirs = append(dirs, path.Join(dir, fi.Name()))
			}
		}
	} else {
		dirs = append(dirs, path.Join(dir, name))
	}
	for _, pathname := range dirs {
		if len(names) == 1 {
			exist, err := c.Exists(pathname)
			if err != nil {
				return nil, err
			}
			if exist {
				m = append(m, pathname)
			}
			continue
		}
		sub, err := c.glob(pathname, names[1:])
		if err != nil {
			return nil, err
		}
		m = append(m, sub...)
	}
	return m, nil
}

func hasMeta(name string) bool {
	return strings.ContainsAny(name, "*?")
}
