package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"telesend/internal/runtime/supervisor"
	logx "telesend/pkg/logx"
)

// Config controls daemon mode.
type Config struct {
	// Pattern is the file glob to watch. Empty disables file triggers.
	Pattern string

	// Schedule optionally re-dispatches on a cron/interval trigger.
	Schedule *ParsedSpec

	// Debounce is how long to wait after the last file event before
	// dispatching, so half-written files can settle.
	Debounce time.Duration
}

// RunFunc executes one dispatch over the given files. It returns the number
// of failed units; err is reserved for run-level failures (session,
// cancellation).
type RunFunc func(ctx context.Context, files []string) (failed int, err error)

// Service re-runs the dispatch when watched files appear or change, or when
// the schedule fires. Files are only re-sent after their content (size or
// mtime) changes relative to the last fully successful dispatch.
type Service struct {
	cfg Config
	run RunFunc
	log logx.Logger

	mu        sync.Mutex
	delivered map[string]fileStamp
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

func New(cfg Config, run RunFunc, log logx.Logger) (*Service, error) {
	if run == nil {
		return nil, errors.New("watch: run func is required")
	}
	if strings.TrimSpace(cfg.Pattern) == "" && cfg.Schedule == nil {
		return nil, errors.New("watch: a file pattern or a schedule is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:       cfg,
		run:       run,
		log:       log,
		delivered: map[string]fileStamp{},
	}, nil
}

// Run blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(s.log.With(logx.String("comp", "watch"))))

	// One pending trigger is enough; dispatches coalesce.
	trigger := make(chan struct{}, 1)
	kick := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	if s.cfg.Pattern != "" {
		sup.GoRestart("fsnotify", func(c context.Context) error {
			return s.watchFiles(c, kick)
		},
			supervisor.WithRestartBackoff(250*time.Millisecond, 5*time.Second),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	var cr *cron.Cron
	if s.cfg.Schedule != nil {
		cr = cron.New()
		switch s.cfg.Schedule.Kind {
		case SpecCron:
			if _, err := cr.AddFunc(s.cfg.Schedule.Cron, kick); err != nil {
				sup.Cancel()
				return fmt.Errorf("watch: schedule: %w", err)
			}
		case SpecInterval:
			cr.Schedule(cron.Every(s.cfg.Schedule.Every), cron.FuncJob(kick))
		}
		cr.Start()
		defer func() { <-cr.Stop().Done() }()
	}

	sup.Go0("dispatcher", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case <-trigger:
				s.dispatch(c)
			}
		}
	})

	// Deliver whatever already matches at startup.
	kick()

	notifyReady(s.log)
	s.log.Info("watching",
		logx.String("pattern", s.cfg.Pattern),
		logx.Bool("scheduled", s.cfg.Schedule != nil),
		logx.Duration("debounce", s.cfg.Debounce),
	)

	<-ctx.Done()
	notifyStopping(s.log)

	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sup.Stop(wctx)
}

// watchFiles runs one watcher lifetime. Returning an error lets the
// supervisor recreate the watcher with backoff (fsnotify can wedge on some
// platforms); returning nil stops for good.
func (s *Service) watchFiles(ctx context.Context, kick func()) error {
	dir := filepath.Dir(s.cfg.Pattern)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.log.Debug("watcher started", logx.String("dir", dir))

	// Debounce to let writes settle before dispatching.
	var timerMu sync.Mutex
	var timer *time.Timer
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(s.cfg.Debounce, kick)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if match, _ := filepath.Match(filepath.Base(s.cfg.Pattern), filepath.Base(ev.Name)); match {
				s.log.Debug("file event", logx.String("name", ev.Name), logx.String("op", ev.Op.String()))
				debounce()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			if werr != nil {
				return werr
			}
		}
	}
}

func (s *Service) dispatch(ctx context.Context) {
	files, err := s.pending()
	if err != nil {
		s.log.Warn("glob failed", logx.String("pattern", s.cfg.Pattern), logx.Err(err))
		return
	}
	if len(files) == 0 {
		s.log.Debug("nothing new to deliver")
		return
	}

	failed, err := s.run(ctx, files)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("dispatch run failed", logx.Int("files", len(files)), logx.Err(err))
		return
	}
	if failed > 0 {
		// Leave the batch unmarked so the next trigger retries it.
		s.log.Warn("dispatch finished with failures; will retry on next trigger",
			logx.Int("files", len(files)), logx.Int("failed_units", failed))
		return
	}
	s.markDelivered(files)
}

// pending globs the pattern and drops files already delivered unchanged.
func (s *Service) pending() ([]string, error) {
	if s.cfg.Pattern == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(s.cfg.Pattern)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		st := fileStamp{size: info.Size(), modTime: info.ModTime()}
		if prev, ok := s.delivered[path]; ok && prev == st {
			continue
		}
		out = append(out, path)
	}
	return out, nil
}

func (s *Service) markDelivered(files []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		s.delivered[path] = fileStamp{size: info.Size(), modTime: info.ModTime()}
	}
}

// notifyReady/notifyStopping signal systemd when running as a Type=notify
// unit. Both are no-ops outside systemd.
func notifyReady(log logx.Logger) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify: ready")
	}
}

func notifyStopping(log logx.Logger) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Debug("sd_notify stopping failed", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify: stopping")
	}
}
