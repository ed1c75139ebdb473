package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/moffa90/go-fwflash/download"
	"github.com/moffa90/go-fwflash/logging"
	"github.com/moffa90/go-fwflash/session"
)

// HeaderRequestID carries the request ID set by the server.
const HeaderRequestID = "X-Request-ID"

// Server is the local control API. Each session it creates owns one
// device programmer from the factory.
type Server struct {
	cfg     Config
	factory ProgrammerFactory
	log     logging.Logger
	engine  *gin.Engine

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	sess *session.Session

	mu  sync.Mutex
	job *flashJob
}

// New creates a server. factory must not be nil.
func New(factory ProgrammerFactory, opts ...Option) *Server {
	if factory == nil {
		panic("programmer factory cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		cfg:      cfg,
		factory:  factory,
		log:      logging.OrNop(cfg.Logger),
		sessions: make(map[string]*entry),
	}

	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.MaxMultipartMemory = cfg.MaxUploadSize
	e.Use(requestid.New(requestid.WithCustomHeaderStrKey(HeaderRequestID)), s.requestLogger, errorHandler, gin.Recovery())
	setRoutes(e, s)
	s.engine = e
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully and
// cancels running flash jobs.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Control API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(<-errCh, http.ErrServerClosed) {
		s.log.Info("Control API stopped")
	}
	return err
}

// Close cancels every flash job and disconnects every session.
func (s *Server) Close() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for id, e := range s.sessions {
		entries = append(entries, e)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.closeEntry(e)
	}
}

func (s *Server) closeEntry(e *entry) {
	e.mu.Lock()
	job := e.job
	e.mu.Unlock()
	if job != nil {
		job.cancel()
		<-job.done
	}
	if err := e.sess.Disconnect(); err != nil {
		s.log.Error("Disconnect failed", "session", e.sess.ID, "error", err)
	}
}

func (s *Server) newSession() (*session.Session, error) {
	programmer, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("create programmer: %w", err)
	}

	dlOpts := append([]download.Option{
		download.WithLogger(s.cfg.Logger),
		download.WithMetrics(s.cfg.Metrics),
	}, s.cfg.DownloadOptions...)

	sess := session.New(programmer,
		session.WithLogger(s.cfg.Logger),
		session.WithMetrics(s.cfg.Metrics),
		session.WithDownloader(download.New(dlOpts...)),
		session.WithFlashSize(s.cfg.FlashSize),
		session.WithBaudRate(s.cfg.BaudRate),
		session.WithCompletionSlice(s.cfg.CompletionSlice),
	)
	if s.cfg.Partitions != nil {
		sess.SetPartitionTable(s.cfg.Partitions)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{sess: sess}
	s.mu.Unlock()

	s.log.Info("Session created", "session", sess.ID)
	return sess, nil
}

func (s *Server) lookup(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, &NotFoundError{What: "session", ID: id}
	}
	return e, nil
}

func (s *Server) remove(id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return &NotFoundError{What: "session", ID: id}
	}
	s.closeEntry(e)
	s.log.Info("Session removed", "session", id)
	return nil
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(gc *gin.Context) {
	start := time.Now()
	gc.Next()

	kv := []interface{}{
		"method", gc.Request.Method,
		"path", gc.FullPath(),
		"status", gc.Writer.Status(),
		"latency", time.Since(start),
		"request_id", requestid.Get(gc),
	}
	if len(gc.Errors) > 0 {
		s.log.Error("Request failed", append(kv, "error", gc.Errors.Last().Err)...)
		return
	}
	s.log.Debug("Request handled", kv...)
}
