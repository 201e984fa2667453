package main

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/taskgraph/groupcomm/config"
	"github.com/taskgraph/groupcomm/controller"
	"github.com/taskgraph/groupcomm/driver"
	"github.com/taskgraph/groupcomm/filesystem"
	"github.com/taskgraph/groupcomm/pkg/etcdutil"
	"go.uber.org/zap"
)

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Prints the configuration of every task.",
		Long:  `Allocates the job's workers in order, master first, and prints each task's decoded configuration once its groups are complete.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), true)
		},
	}
	return cmd
}

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publishes the configuration of every task to the job's store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), false)
		},
	}
	return cmd
}

func run(ctx context.Context, out io.Writer, plan bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	job, err := loadJob()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	d, err := job.BuildDriver(driver.WithLogger(logger), driver.WithMetrics(driver.NewMetrics(reg)))
	if err != nil {
		return err
	}

	var pub controller.Publisher
	if plan || job.Publish.Target == config.TargetStdout {
		pub = newPrinter(out, d.Configs())
	} else {
		p, closer, err := openStore(job, logger)
		if err != nil {
			return err
		}
		defer closer()
		pub = p
	}

	c := controller.New(d, pub, controller.WithLogger(logger), controller.WithParallelism(job.Parallelism))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Run(ctx, allocate(ctx, d, job)); err != nil {
		return err
	}
	if err := c.Await(ctx); err != nil {
		return errors.Wrap(err, "waiting for groups to be published")
	}
	logger.Info("job configured", zap.String("job", job.Name), zap.Int("groups", len(job.Groups)))
	return nil
}

// allocate emits one allocation per worker the job needs. Worker n joins the
// groups that still have room for an n-th task.
func allocate(ctx context.Context, d *driver.Driver, job *config.Job) <-chan controller.Allocation {
	ch := make(chan controller.Allocation)
	go func() {
		defer close(ch)
		for n := 0; n < job.MaxTasks(); n++ {
			a := controller.Allocation{TaskID: controller.TaskID(d, n == 0, job.WorkerPrefix, n)}
			for _, g := range job.Groups {
				if g.NumTasks > n {
					a.Groups = append(a.Groups, g.Name)
				}
			}
			select {
			case ch <- a:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func openStore(job *config.Job, logger *zap.Logger) (controller.Publisher, func(), error) {
	switch job.Publish.Target {
	case config.TargetDir:
		return filesystem.NewPublisher(filesystem.NewLocalFSClient(), job.Publish.Dir, logger), func() {}, nil
	case config.TargetHDFS:
		client, err := filesystem.NewHdfsClient(job.Publish.Namenode, job.Publish.User)
		if err != nil {
			return nil, nil, err
		}
		return filesystem.NewPublisher(client, job.Publish.Root, logger), func() {}, nil
	case config.TargetEtcd:
		client, err := etcdutil.NewClient(job.Publish.Endpoints, job.Publish.DialTimeout)
		if err != nil {
			return nil, nil, err
		}
		return etcdutil.NewPublisher(client, job.Name, logger), func() { client.Close() }, nil
	}
	return nil, nil, errors.Errorf("unknown publish target %q", job.Publish.Target)
}
