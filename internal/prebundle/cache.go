package prebundle

import (
	"container/list"
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/esm-dev/esmd/internal/logx"
	"github.com/esm-dev/esmd/internal/npm"
	"golang.org/x/sync/errgroup"
)

// Resolver resolves a bare specifier to its entry file.
type Resolver interface {
	Resolve(specifier string) (*npm.ResolvedModule, error)
}

// Error is returned when the bundler fails to pre-bundle a module.
type Error struct {
	Specifier string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to pre-bundle '%s': %v", e.Specifier, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures a Cache.
type Options struct {
	// max number of builds running at the same time, default is the number of CPUs
	Concurrency int
	Logger      logx.Logger
}

// Cache pre-bundles bare modules on first use and keeps the bundled code for
// the lifetime of the cache. Concurrent requests of a module that is being
// built wait for the same build.
type Cache struct {
	resolver Resolver
	bundler  Bundler
	logger   logx.Logger

	lock  sync.Mutex
	store map[string][]byte
	tasks map[string]*buildTask
	queue *list.List
	idles int
}

type buildTask struct {
	specifier string
	el        *list.Element
	waitChans []chan *buildOutput
	createdAt time.Time
	startedAt time.Time
	pending   bool
}

type buildOutput struct {
	code []byte
	err  error
}

// New creates a pre-bundle cache.
func New(resolver Resolver, bundler Bundler, options Options) *Cache {
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	logger := options.Logger
	if logger == nil {
		logger = logx.Discard
	}
	return &Cache{
		resolver: resolver,
		bundler:  bundler,
		logger:   logger,
		store:    map[string][]byte{},
		tasks:    map[string]*buildTask{},
		queue:    list.New(),
		idles:    concurrency,
	}
}

// Get returns the pre-bundled code of the bare specifier, the module is built
// on the first call. If the ctx is done before the build finishes, Get returns
// the ctx error while the build goes on for later calls.
func (c *Cache) Get(ctx context.Context, specifier string) ([]byte, error) {
	select {
	case output := <-c.add(specifier):
		return output.code, output.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Has reports whether the specifier has been pre-bundled.
func (c *Cache) Has(specifier string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, ok := c.store[specifier]
	return ok
}

// Len returns the number of pre-bundled modules.
func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.store)
}

// Warmup pre-bundles the given specifiers in parallel.
func (c *Cache) Warmup(ctx context.Context, specifiers []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, specifier := range specifiers {
		specifier := specifier
		g.Go(func() error {
			_, err := c.Get(ctx, specifier)
			return err
		})
	}
	return g.Wait()
}

// add returns a channel receiving the build output of the specifier. A stored
// module is sent immediately, a module that is being built gets one more
// waiter, otherwise a new build task is queued.
func (c *Cache) add(specifier string) chan *buildOutput {
	ch := make(chan *buildOutput, 1)

	c.lock.Lock()
	if code, ok := c.store[specifier]; ok {
		c.lock.Unlock()
		ch <- &buildOutput{code: code}
		return ch
	}

	// check if the task is already in the queue
	if task, ok := c.tasks[specifier]; ok {
		task.waitChans = append(task.waitChans, ch)
		c.lock.Unlock()
		return ch
	}

	task := &buildTask{
		specifier: specifier,
		waitChans: []chan *buildOutput{ch},
		createdAt: time.Now(),
		pending:   true,
	}
	task.el = c.queue.PushBack(task)
	c.tasks[specifier] = task
	c.lock.Unlock()

	c.schedule()
	return ch
}

func (c *Cache) schedule() {
	var task *buildTask

	c.lock.Lock()
	if c.idles > 0 {
		for el := c.queue.Front(); el != nil; el = el.Next() {
			t, ok := el.Value.(*buildTask)
			if ok && t.pending {
				task = t
				break
			}
		}
	}
	if task != nil {
		c.idles -= 1
		task.pending = false
		task.startedAt = time.Now()
	}
	c.lock.Unlock()

	// no available task
	if task == nil {
		return
	}

	go c.run(task)
}

func (c *Cache) run(task *buildTask) {
	code, err := c.build(task.specifier)
	if err == nil {
		c.logger.Infof("pre-bundle '%s' done in %v (waited %v)", task.specifier, time.Since(task.startedAt), task.startedAt.Sub(task.createdAt))
	} else {
		c.logger.Errorf("pre-bundle '%s': %v", task.specifier, err)
	}

	output := &buildOutput{code, err}

	// store the code and remove the task at once, so there is no window where
	// a new request misses both
	c.lock.Lock()
	if err == nil {
		c.store[task.specifier] = code
	}
	for _, ch := range task.waitChans {
		ch <- output
	}
	c.queue.Remove(task.el)
	delete(c.tasks, task.specifier)
	c.idles += 1
	c.lock.Unlock()

	// schedule next task if have any
	c.schedule()
}

func (c *Cache) build(specifier string) (code []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			code = nil
			err = &Error{Specifier: specifier, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	mod, err := c.resolver.Resolve(specifier)
	if err != nil {
		return nil, err
	}
	c.logger.Debugf("pre-bundle '%s' from %s", specifier, mod.EntryPath)

	code, err = c.bundler.Bundle(BundleEntry{
		Specifier:   specifier,
		PackageName: mod.PackageName,
		PackageDir:  mod.PackageDir,
		EntryPath:   mod.EntryPath,
	})
	if err != nil {
		return nil, &Error{Specifier: specifier, Err: err}
	}
	return code, nil
}
