package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"nexcart/internal/logging"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of a Worker.
type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActive     State = "active"
	StateRedundant  State = "redundant"
)

// MessageSkipWaiting activates an installed worker without waiting.
const MessageSkipWaiting = "SKIP_WAITING"

var (
	ErrWrongState     = errors.New("offline: worker is not in the required state")
	ErrUnknownMessage = errors.New("offline: unknown control message")
	ErrClosed         = errors.New("offline: worker closed")
)

// Recorder receives one observation per intercepted request.
type Recorder interface {
	OfflineResponse(class, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) OfflineResponse(string, string) {}

type Config struct {
	// Version names the active cache. Caches with any other name are
	// deleted on activation.
	Version     string
	Upstream    *url.URL
	APIPrefix   string
	APITimeout  time.Duration
	Precache    []string
	OfflinePath string
	// SkipWaiting activates the worker right after a successful install.
	SkipWaiting bool
}

type Message struct {
	Type string `json:"type"`
}

type Status struct {
	Version string   `json:"version"`
	State   State    `json:"state"`
	Caches  []string `json:"caches"`
}

// purgeReportKey marks a failed old-cache purge in a RefreshReport.
const purgeReportKey = "(old caches)"

// RefreshReport lists the outcome per bootstrap path.
type RefreshReport struct {
	Refreshed []string          `json:"refreshed"`
	Failed    map[string]string `json:"failed"`
}

type Option func(*Worker)

func WithLogger(l *logrus.Entry) Option {
	return func(w *Worker) { w.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(w *Worker) { w.recorder = r }
}

// WithTransport replaces the upstream transport.
func WithTransport(t http.RoundTripper) Option {
	return func(w *Worker) { w.transport = t }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// Worker is an http.Handler that sits in front of the storefront and applies
// a caching policy per resource class.
type Worker struct {
	cfg       Config
	storage   CacheStorage
	transport http.RoundTripper
	client    *http.Client
	proxy     *httputil.ReverseProxy
	logger    *logrus.Entry
	recorder  Recorder
	now       func() time.Time

	mu     sync.RWMutex
	state  State
	closed bool

	// set when old caches survived activation
	purgePending atomic.Bool

	refreshes singleflight.Group
	bg        sync.WaitGroup
	bgCtx     context.Context
	bgCancel  context.CancelFunc
}

func NewWorker(cfg Config, storage CacheStorage, opts ...Option) (*Worker, error) {
	if cfg.Version == "" {
		return nil, fmt.Errorf("offline: cache version is required")
	}
	if cfg.Upstream == nil || cfg.Upstream.Host == "" {
		return nil, fmt.Errorf("offline: upstream URL is required")
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 5 * time.Second
	}
	if cfg.OfflinePath == "" {
		cfg.OfflinePath = "/offline"
	}

	w := &Worker{cfg: cfg, storage: storage, state: StateNew}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.Discard()
	}
	if w.recorder == nil {
		w.recorder = nopRecorder{}
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.transport == nil {
		w.transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	w.client = &http.Client{
		Transport: w.transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	upstream := cfg.Upstream
	w.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		Transport: w.transport,
		ErrorHandler: func(rw http.ResponseWriter, r *http.Request, err error) {
			w.logger.WithError(err).WithField("path", r.URL.Path).Warn("offline: pass-through failed")
			rw.WriteHeader(http.StatusBadGateway)
		},
	}
	w.bgCtx, w.bgCancel = context.WithCancel(context.Background())
	return w, nil
}

func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// transition moves from one of from to to, or returns ErrWrongState.
func (w *Worker) transition(to State, from ...State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if !slices.Contains(from, w.state) {
		return fmt.Errorf("%w: %s -> %s", ErrWrongState, w.state, to)
	}
	w.state = to
	return nil
}

// Install fetches the bootstrap paths in parallel and stores them only when
// every fetch succeeded. A failed install leaves the worker in StateNew.
func (w *Worker) Install(ctx context.Context) error {
	if err := w.transition(StateInstalling, StateNew); err != nil {
		return err
	}

	entries := make([]Entry, len(w.cfg.Precache))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range w.cfg.Precache {
		g.Go(func() error {
			e, err := w.fetchPath(gctx, p)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = w.putAll(ctx, entries)
	}
	if err != nil {
		w.setState(StateNew)
		w.logger.WithError(err).Warn("offline: install failed")
		return fmt.Errorf("install: %w", err)
	}

	w.setState(StateInstalled)
	w.logger.WithFields(logrus.Fields{"version": w.cfg.Version, "assets": len(entries)}).Info("offline: installed")
	if w.cfg.SkipWaiting {
		return w.Activate(ctx)
	}
	return nil
}

// Activate deletes every cache that does not carry the current version and
// starts intercepting requests. A purge that could not finish leaves the
// worker active and is retried by the next Refresh or skip-waiting message.
func (w *Worker) Activate(ctx context.Context) error {
	if err := w.transition(StateActive, StateInstalled); err != nil {
		return err
	}
	return w.purge(ctx)
}

func (w *Worker) purge(ctx context.Context) error {
	names, err := w.storage.Keys(ctx)
	if err != nil {
		w.purgePending.Store(true)
		w.logger.WithError(err).Warn("offline: list caches")
		return fmt.Errorf("purge old caches: %w", err)
	}
	var failed error
	for _, name := range names {
		if name == w.cfg.Version {
			continue
		}
		if err := w.storage.Delete(ctx, name); err != nil {
			w.logger.WithError(err).WithField("cache", name).Warn("offline: delete old cache")
			failed = errors.Join(failed, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		w.logger.WithField("cache", name).Info("offline: cleared old cache")
	}
	w.purgePending.Store(failed != nil)
	if failed != nil {
		return fmt.Errorf("purge old caches: %w", failed)
	}
	return nil
}

// retryPurge finishes a purge left over from activation.
func (w *Worker) retryPurge(ctx context.Context) error {
	if !w.purgePending.Load() || w.State() != StateActive {
		return nil
	}
	return w.purge(ctx)
}

// Refresh re-fetches every bootstrap path independently. Failures keep the
// previously cached copy.
func (w *Worker) Refresh(ctx context.Context) RefreshReport {
	report := RefreshReport{Refreshed: []string{}, Failed: map[string]string{}}
	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range w.cfg.Precache {
		g.Go(func() error {
			e, err := w.fetchPath(ctx, p)
			if err == nil {
				err = w.put(ctx, e)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[p] = err.Error()
			} else {
				report.Refreshed = append(report.Refreshed, p)
			}
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(report.Refreshed)
	if err := w.retryPurge(ctx); err != nil {
		report.Failed[purgeReportKey] = err.Error()
	}
	return report
}

// HandleMessage applies a control message sent by a page.
func (w *Worker) HandleMessage(ctx context.Context, msg Message) error {
	switch msg.Type {
	case MessageSkipWaiting:
		switch w.State() {
		case StateInstalled:
			return w.Activate(ctx)
		case StateActive:
			return w.retryPurge(ctx)
		default:
			return fmt.Errorf("%w: cannot skip waiting while %s", ErrWrongState, w.State())
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

func (w *Worker) Status(ctx context.Context) (Status, error) {
	names, err := w.storage.Keys(ctx)
	if err != nil {
		return Status{}, err
	}
	if names == nil {
		names = []string{}
	}
	return Status{Version: w.cfg.Version, State: w.State(), Caches: names}, nil
}

// Close stops background refreshes and marks the worker redundant.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.state = StateRedundant
	w.mu.Unlock()

	w.bgCancel()
	done := make(chan struct{})
	go func() {
		w.bg.Wait()
		close(done)
	}()
	defer w.client.CloseIdleConnections()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	class := Classify(r, w.cfg.APIPrefix)
	if class == ClassPassThrough || w.State() != StateActive {
		w.recorder.OfflineResponse(string(ClassPassThrough), sourceNetwork)
		w.proxy.ServeHTTP(rw, r)
		return
	}

	var outcome string
	switch class {
	case ClassAPI:
		outcome = w.serveAPI(rw, r)
	case ClassNavigation:
		outcome = w.serveNavigation(rw, r)
	case ClassImage:
		outcome = w.serveImage(rw, r)
	default:
		outcome = w.serveStatic(rw, r)
	}
	w.recorder.OfflineResponse(string(class), outcome)
}

func (w *Worker) serveAPI(rw http.ResponseWriter, r *http.Request) string {
	ctx, cancel := context.WithTimeout(r.Context(), w.cfg.APITimeout)
	defer cancel()

	e, err := w.fetch(ctx, r.URL.RequestURI(), r.Header)
	switch {
	case err == nil:
		writeEntry(rw, e, sourceNetwork)
		return sourceNetwork
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		writeSynthetic(rw, http.StatusRequestTimeout, "application/json", timeoutJSON)
		return "timeout"
	default:
		w.logger.WithError(err).WithField("path", r.URL.Path).Debug("offline: api fetch failed")
		writeSynthetic(rw, http.StatusServiceUnavailable, "application/json", offlineJSON)
		return "offline"
	}
}

func (w *Worker) serveNavigation(rw http.ResponseWriter, r *http.Request) string {
	key := r.URL.RequestURI()
	e, err := w.fetch(r.Context(), key, r.Header)
	if err == nil {
		if is2xx(e.Status) {
			w.putLogged(r.Context(), e)
		}
		writeEntry(rw, e, sourceNetwork)
		return sourceNetwork
	}

	if cached, ok := w.match(r.Context(), key); ok {
		writeEntry(rw, cached, sourceCache)
		return sourceCache
	}
	if page, ok := w.match(r.Context(), w.cfg.OfflinePath); ok {
		writeEntry(rw, page, sourceFallback)
		return sourceFallback
	}
	writeSynthetic(rw, http.StatusServiceUnavailable, "text/plain; charset=utf-8", offlineText)
	return "offline"
}

func (w *Worker) serveImage(rw http.ResponseWriter, r *http.Request) string {
	key := r.URL.RequestURI()
	if cached, ok := w.match(r.Context(), key); ok {
		w.revalidate(key, r.Header)
		writeEntry(rw, cached, sourceCache)
		return sourceCache
	}

	e, err := w.fetch(r.Context(), key, r.Header)
	if err != nil || !is2xx(e.Status) {
		writeSynthetic(rw, http.StatusOK, "image/svg+xml", placeholderSVG)
		return sourceFallback
	}
	w.putLogged(r.Context(), e)
	writeEntry(rw, e, sourceNetwork)
	return sourceNetwork
}

func (w *Worker) serveStatic(rw http.ResponseWriter, r *http.Request) string {
	key := r.URL.RequestURI()
	if cached, ok := w.match(r.Context(), key); ok {
		w.revalidate(key, r.Header)
		writeEntry(rw, cached, sourceCache)
		return sourceCache
	}

	e, err := w.fetch(r.Context(), key, r.Header)
	if err != nil {
		writeSynthetic(rw, http.StatusServiceUnavailable, "text/plain; charset=utf-8", offlineText)
		return "offline"
	}
	if is2xx(e.Status) {
		w.putLogged(r.Context(), e)
	}
	writeEntry(rw, e, sourceNetwork)
	return sourceNetwork
}

// revalidate refreshes key in the background. Concurrent refreshes of the
// same key share one upstream fetch; failures are ignored.
func (w *Worker) revalidate(key string, header http.Header) {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return
	}
	w.bg.Add(1)
	w.mu.RUnlock()

	header = header.Clone()
	go func() {
		defer w.bg.Done()
		_, _, _ = w.refreshes.Do(key, func() (any, error) {
			e, err := w.fetch(w.bgCtx, key, header)
			if err != nil {
				w.logger.WithError(err).WithField("url", key).Debug("offline: background refresh failed")
				return nil, err
			}
			if is2xx(e.Status) {
				w.putLogged(w.bgCtx, e)
			}
			return nil, nil
		})
	}()
}

func (w *Worker) fetchPath(ctx context.Context, p string) (Entry, error) {
	e, err := w.fetch(ctx, p, nil)
	if err != nil {
		return Entry{}, err
	}
	if !is2xx(e.Status) {
		return Entry{}, fmt.Errorf("fetch %s: status %d", p, e.Status)
	}
	return e, nil
}

// fetch requests uri from upstream and reads the whole body.
func (w *Worker) fetch(ctx context.Context, uri string, header http.Header) (Entry, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return Entry{}, err
	}
	target := w.cfg.Upstream.ResolveReference(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Entry{}, err
	}
	if header != nil {
		req.Header = header.Clone()
		stripHopHeaders(req.Header)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("read %s: %w", uri, err)
	}

	h := resp.Header.Clone()
	stripHopHeaders(h)
	h.Del("Content-Length")
	return Entry{URL: uri, Status: resp.StatusCode, Header: h, Body: body, StoredAt: w.now()}, nil
}

func (w *Worker) match(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := w.storage.Match(ctx, key)
	if err != nil {
		w.logger.WithError(err).WithField("url", key).Warn("offline: cache lookup failed")
		return Entry{}, false
	}
	return e, ok
}

func (w *Worker) put(ctx context.Context, e Entry) error {
	return w.putAll(ctx, []Entry{e})
}

func (w *Worker) putLogged(ctx context.Context, e Entry) {
	if err := w.put(ctx, e); err != nil {
		w.logger.WithError(err).WithField("url", e.URL).Warn("offline: cache write failed")
	}
}

func (w *Worker) putAll(ctx context.Context, entries []Entry) error {
	cache, err := w.storage.Open(ctx, w.cfg.Version)
	if err != nil {
		return fmt.Errorf("open cache %s: %w", w.cfg.Version, err)
	}
	for _, e := range entries {
		if err := cache.Put(ctx, e); err != nil {
			return fmt.Errorf("cache %s: %w", e.URL, err)
		}
	}
	return nil
}
