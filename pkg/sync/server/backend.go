// Package server implements the directory server. It keeps one directory per
// user, and relays changes between all the sessions logged in as that user.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/syncbox/pkg/dispatch"
	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/metrics"
	dirsync "github.com/sidkik/syncbox/pkg/sync"
)

// Config configures a Backend.
type Config struct {
	// Root is the directory that contains a subdirectory per user.
	Root string

	// ListenAddress is the IP to listen on. Empty means all interfaces.
	ListenAddress string
	Port          int

	// ClientPort is the port that clients listen on. It defaults to Port.
	ClientPort int

	// StatusAddress is the host:port of the HTTP status API. The API is
	// disabled when it's empty.
	StatusAddress string

	Observer dirsync.Observer
}

// Backend runs the directory server.
type Backend struct {
	config   Config
	observer dirsync.Observer
	outbox   *dispatch.Outbox
	manager  *Manager
	server   *dispatch.Server

	listener net.Listener
	status   *http.Server
}

// NewBackend creates a Backend. It doesn't listen until Start is called.
func NewBackend(config Config) *Backend {
	if config.ClientPort == 0 {
		config.ClientPort = config.Port
	}
	observer := config.Observer
	if observer == nil {
		observer = dirsync.NopObserver{}
	}

	outbox := dispatch.NewOutbox(nil)
	manager := NewManager(config.Root, config.ClientPort, outbox, observer)
	return &Backend{
		config:   config,
		observer: observer,
		outbox:   outbox,
		manager:  manager,
		server:   dispatch.NewServer(manager),
	}
}

// Start creates the root directory and starts accepting commands.
func (b *Backend) Start() error {
	if err := fs.MkdirAll(b.config.Root, 0755); err != nil {
		return errors.WithContext(err, "create root directory")
	}

	addr := net.JoinHostPort(b.config.ListenAddress, fmt.Sprintf("%d", b.config.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WithContext(err, "listen")
	}
	b.listener = lis

	go func() {
		if err := b.server.Serve(lis); err != nil {
			b.observer.Fatal(errors.WithContext(err, "accept loop"))
		}
	}()

	if b.config.StatusAddress != "" {
		b.status = &http.Server{
			Addr:    b.config.StatusAddress,
			Handler: newStatusRouter(b.manager),
		}
		go func() {
			if err := b.status.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Status API failed")
			}
		}()
	}

	b.observer.Log(fmt.Sprintf("# Server is running on %s", lis.Addr()))
	return nil
}

// Addr returns the address the server is listening on.
func (b *Backend) Addr() net.Addr {
	return b.listener.Addr()
}

// Manager returns the session manager.
func (b *Backend) Manager() *Manager {
	return b.manager
}

// Stop tells all clients that the server is going down, stops accepting
// commands, and waits for in-flight work to finish.
func (b *Backend) Stop() {
	b.manager.Shutdown()

	if err := b.server.Close(); err != nil {
		log.WithError(err).Warn("Failed to close listener")
	}
	b.server.Wait()
	b.outbox.Wait()

	if b.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.status.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Failed to stop status API")
		}
	}
	b.observer.Log("# Server is stopped")
}

func newStatusRouter(manager *Manager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())
	r.HEAD("/", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, manager.Users())
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"remote":   c.Request.RemoteAddr,
			"method":   c.Request.Method,
			"url":      c.Request.URL.String(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("Status API request")
	}
}
