package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/taskgraph/groupcomm/configsvc"
	"github.com/taskgraph/groupcomm/driver"
)

// printer is a publisher that writes each task's decoded configuration to a
// writer instead of a store.
type printer struct {
	configs configsvc.Service

	mu  sync.Mutex
	out io.Writer
}

func newPrinter(out io.Writer, configs configsvc.Service) *printer {
	return &printer{out: out, configs: configs}
}

func (p *printer) Publish(ctx context.Context, group, taskID string, blob []byte) error {
	tc, err := driver.DecodeTaskConfiguration(p.configs, blob)
	if err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%s (%d bytes)\n", group, taskID, len(blob))
	for _, op := range tc.Operators {
		fmt.Fprintf(&sb, "  %-12s %-9s %-8s root=%s", op.OperatorName, op.Kind, op.Role, op.RootID)
		if op.Parent != "" {
			fmt.Fprintf(&sb, " parent=%s", op.Parent)
		}
		if len(op.Children) > 0 {
			fmt.Fprintf(&sb, " children=%s", strings.Join(op.Children, ","))
		}
		fmt.Fprintf(&sb, " codec=%s", op.Codec)
		if op.ReduceFunction != "" {
			fmt.Fprintf(&sb, " reduce=%s", op.ReduceFunction)
		}
		sb.WriteByte('\n')
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = io.WriteString(p.out, sb.String())
	return err
}
