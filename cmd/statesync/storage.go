package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statesync/internal/config"
	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/reactive"
	"github.com/vango-dev/statesync/pkg/storage"
	"github.com/vango-dev/statesync/pkg/storage/redisstore"
	"github.com/vango-dev/statesync/pkg/storage/s3store"
	"github.com/vango-dev/statesync/pkg/storage/sqlstore"
)

// closableStore is a storage.Store the CLI owns for one command.
type closableStore interface {
	storage.Store
	Close() error
}

// openStore opens the backend selected by cfg.
func openStore(ctx context.Context, cfg *config.Config) (closableStore, error) {
	sc := cfg.Storage
	switch sc.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		s, err := sqlstore.Open(sc.SQLitePath)
		if err != nil {
			return nil, errors.New("H040").Wrap(err)
		}
		return s, nil
	case "redis":
		var opts []redisstore.Option
		if sc.RedisPrefix != "" {
			opts = append(opts, redisstore.WithPrefix(sc.RedisPrefix))
		}
		if sc.RedisTTL > 0 {
			opts = append(opts, redisstore.WithTTL(time.Duration(sc.RedisTTL)))
		}
		s, err := redisstore.Dial(ctx, sc.RedisAddr, opts...)
		if err != nil {
			return nil, errors.New("H040").Wrap(err)
		}
		return s, nil
	case "s3":
		var opts []s3store.Option
		if sc.S3Prefix != "" {
			opts = append(opts, s3store.WithPrefix(sc.S3Prefix))
		}
		s, err := s3store.Open(ctx, sc.S3Bucket, sc.S3Endpoint, opts...)
		if err != nil {
			return nil, errors.New("H040").Wrap(err)
		}
		return s, nil
	default:
		return nil, errors.New("H041").WithDetailf("Backend %q is not supported", sc.Backend)
	}
}

func storageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "storage",
		Aliases: []string{"kv"},
		Short:   "Read and write keys in the configured store",
		Long: `Read and write keys in the store selected by storage.backend.

Values are shown exactly as stored: strings raw, everything else as JSON.

Examples:
  statesync storage set theme dark
  statesync storage get theme
  statesync storage watch theme --interval=1s
  STATESYNC_STORAGE_BACKEND=redis statesync storage keys`,
	}

	cmd.AddCommand(
		storageGetCmd(a),
		storageSetCmd(a),
		storageRemoveCmd(a),
		storageKeysCmd(a),
		storageWatchCmd(a),
	)
	return cmd
}

// withStore opens the configured store, runs fn and closes the store.
func (a *app) withStore(ctx context.Context, fn func(storage.Store) error) error {
	store, err := openStore(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			a.logger.Warn("closing store failed", "backend", a.cfg.Storage.Backend, "error", cerr)
		}
	}()
	return fn(store)
}

func storageGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the stored value of KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s storage.Store) error {
				v, ok, err := s.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
}

func storageSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store VALUE under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s storage.Store) error {
				if err := s.Set(ctx, args[0], args[1]); err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Set %s", args[0])
				return nil
			})
		},
	}
}

func storageRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY",
		Aliases: []string{"remove"},
		Short:   "Remove KEY",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s storage.Store) error {
				if err := s.Remove(ctx, args[0]); err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "Removed %s", args[0])
				return nil
			})
		},
	}
}

func storageKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored keys (memory and sqlite backends)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s storage.Store) error {
				var keys []string
				switch ks := s.(type) {
				case interface {
					Keys(context.Context) ([]string, error)
				}:
					var err error
					if keys, err = ks.Keys(ctx); err != nil {
						return err
					}
				case interface{ Keys() []string }:
					keys = ks.Keys()
				default:
					return fmt.Errorf("the %s backend cannot list keys", a.cfg.Storage.Backend)
				}
				sort.Strings(keys)
				out := cmd.OutOrStdout()
				for _, k := range keys {
					fmt.Fprintln(out, k)
				}
				return nil
			})
		},
	}
}

func storageWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		count    int
	)

	cmd := &cobra.Command{
		Use:   "watch KEY",
		Short: "Print KEY every time its stored value changes",
		Long: `Poll KEY and print its value whenever it changes, until interrupted.
An absent key prints <absent>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(s storage.Store) error {
				return a.watch(ctx, cmd.OutOrStdout(), s, args[0], interval, count)
			})
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Polling interval")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many values (0 = until interrupted)")

	return cmd
}

// watch prints the value of key whenever a poll observes a change.
func (a *app) watch(ctx context.Context, out io.Writer, s storage.Store, key string, interval time.Duration, count int) error {
	if interval <= 0 {
		return errors.New("H003").WithDetail("--interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := a.logger.With("key", key)
	changes := make(chan string)
	first, last := true, ""

	// Ticks never overlap, so first and last need no locking.
	task := reactive.Interval(interval, func() {
		a.metrics.PollTick("watch")
		v, ok, err := s.Get(ctx, key)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("storage read failed", "error", err)
				a.metrics.StoreError("watch", "get")
			}
			return
		}
		if !ok {
			v = "<absent>"
		}
		if !first && v == last {
			return
		}
		first, last = false, v
		a.metrics.StateChange("watch")
		select {
		case changes <- v:
		case <-ctx.Done():
		}
	}, reactive.IntervalImmediate())
	defer task.Stop()

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-changes:
			fmt.Fprintln(out, v)
			seen++
			if count > 0 && seen >= count {
				return nil
			}
		}
	}
}
