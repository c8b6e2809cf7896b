package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/metrics"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
	"gitlab.com/timkado/api/account-cache-service/pkg/cachekeys"
	"gitlab.com/timkado/api/account-cache-service/pkg/contextkeys"
	"gitlab.com/timkado/api/account-cache-service/pkg/safego"
)

// Refresh event results for metrics.
const (
	resultProcessed = "processed"
	resultDegraded  = "degraded"
	resultInvalid   = "invalid"
	resultFailed    = "failed"
)

var errInvalidRefreshRequest = errors.New("invalid refresh request")

// Refresher forces a refresh of one cache record.
type Refresher interface {
	RefreshDomain(ctx context.Context, cacheDomain domain.CacheDomain, tenantID, userID string) (domain.RefreshOutcome, error)
}

// RefreshConsumer consumes refresh requests published by the CRM and billing webhook glue and forces the
// matching cache record to refresh. Requests are load-balanced across instances by a queue group.
type RefreshConsumer struct {
	nc        *nats.Conn
	sub       *nats.Subscription
	logger    domain.Logger
	cfg       config.NATSConfig
	refresher Refresher
	appCtx    context.Context
	timeout   time.Duration
}

// NewRefreshConsumer connects to NATS. It returns a nil consumer when nats.url is empty, which disables
// refresh events.
func NewRefreshConsumer(appCtx context.Context, cfgProvider config.Provider, appLogger domain.Logger, refresher Refresher) (*RefreshConsumer, func(), error) {
	appFullCfg := cfgProvider.Get()
	natsCfg := appFullCfg.NATS
	if natsCfg.URL == "" {
		appLogger.Info(appCtx, "NATS URL not configured; refresh events disabled")
		return nil, func() {}, nil
	}

	appLogger.Info(appCtx, "Attempting to connect to NATS server", "url", natsCfg.URL)

	nc, err := nats.Connect(natsCfg.URL,
		nats.Name(fmt.Sprintf("%s-refresh-%s", appFullCfg.App.ServiceName, appFullCfg.Server.PodID)),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			subject := ""
			if s != nil {
				subject = s.Subject
			}
			appLogger.Error(appCtx, "NATS error", "subscription", subject, "error", err.Error())
		}),
		nats.ClosedHandler(func(c *nats.Conn) {
			appLogger.Info(appCtx, "NATS connection closed")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			appLogger.Info(appCtx, "NATS reconnected", "url", c.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			appLogger.Warn(appCtx, "NATS disconnected", "error", err)
		}),
	)
	if err != nil {
		appLogger.Error(appCtx, "Failed to connect to NATS", "url", natsCfg.URL, "error", err.Error())
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsCfg.URL, err)
	}

	consumer := newRefreshConsumer(appCtx, natsCfg, appLogger, refresher)
	consumer.nc = nc

	cleanup := func() {
		appLogger.Info(context.Background(), "Closing NATS connection...")
		consumer.Close()
	}
	return consumer, cleanup, nil
}

func newRefreshConsumer(appCtx context.Context, natsCfg config.NATSConfig, logger domain.Logger, refresher Refresher) *RefreshConsumer {
	return &RefreshConsumer{
		logger:    logger,
		cfg:       natsCfg,
		refresher: refresher,
		appCtx:    appCtx,
		timeout:   30 * time.Second,
	}
}

// Start subscribes to every refresh subject under the configured prefix.
func (c *RefreshConsumer) Start() error {
	if c == nil {
		return nil
	}
	subject := cachekeys.RefreshSubject(c.cfg.SubjectPrefix, ">")
	sub, err := c.nc.QueueSubscribe(subject, c.cfg.QueueGroup, c.handleMsg)
	if err != nil {
		c.logger.Error(c.appCtx, "Failed to subscribe to refresh subject", "subject", subject, "queue_group", c.cfg.QueueGroup, "error", err.Error())
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	c.sub = sub
	c.logger.Info(c.appCtx, "Subscribed to refresh requests", "subject", subject, "queue_group", c.cfg.QueueGroup)
	return nil
}

// Ping reports whether the NATS connection is up, for readiness checks.
func (c *RefreshConsumer) Ping(ctx context.Context) error {
	if c == nil || c.nc == nil {
		return nil
	}
	if !c.nc.IsConnected() {
		return fmt.Errorf("nats connection status %s", c.nc.Status())
	}
	return nil
}

// Close drains the subscription and the connection.
func (c *RefreshConsumer) Close() {
	if c == nil || c.nc == nil || c.nc.IsClosed() || c.nc.IsDraining() {
		return
	}
	c.logger.Info(context.Background(), "Draining NATS connection...")
	if err := c.nc.Drain(); err != nil {
		c.logger.Error(context.Background(), "Error draining NATS connection", "error", err.Error())
		return
	}
	c.logger.Info(context.Background(), "NATS connection drained successfully.")
}

func (c *RefreshConsumer) handleMsg(msg *nats.Msg) {
	subject, data, reply := msg.Subject, msg.Data, msg.Reply
	safego.Execute(c.appCtx, c.logger, "RefreshRequestHandler", func() {
		err := c.process(subject, data)
		if reply == "" {
			return
		}
		ack := "ok"
		if err != nil {
			ack = "error: " + err.Error()
		}
		if respErr := c.nc.Publish(reply, []byte(ack)); respErr != nil {
			c.logger.Warn(c.appCtx, "Failed to reply to refresh request", "subject", subject, "error", respErr)
		}
	})
}

// process decodes one refresh request and runs it. The cache domain may come from the payload or from
// the last subject token.
func (c *RefreshConsumer) process(subject string, data []byte) error {
	req, err := c.decode(subject, data)
	if err != nil {
		metrics.IncrementRefreshEvent(resultInvalid)
		c.logger.Warn(c.appCtx, "Dropping malformed refresh request", "subject", subject, "error", err)
		return err
	}

	ctx := context.WithValue(c.appCtx, contextkeys.EventIDKey, req.EventID)
	ctx = context.WithValue(ctx, contextkeys.TenantIDKey, req.TenantID)
	ctx = context.WithValue(ctx, contextkeys.UserIDKey, req.UserID)
	ctx = context.WithValue(ctx, contextkeys.CacheDomainKey, string(req.Domain))
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var outcome domain.RefreshOutcome
	err = safego.Run(ctx, c.logger, "RefreshDomain", func() error {
		var refreshErr error
		outcome, refreshErr = c.refresher.RefreshDomain(ctx, req.Domain, req.TenantID, req.UserID)
		return refreshErr
	})
	if err != nil {
		metrics.IncrementRefreshEvent(resultFailed)
		c.logger.Error(ctx, "Refresh request failed", "reason", req.Reason, "error", err)
		return err
	}
	if outcome.Degraded() {
		metrics.IncrementRefreshEvent(resultDegraded)
		c.logger.Warn(ctx, "Refresh request served a fallback", "reason", req.Reason, "outcome", string(outcome))
		return nil
	}
	metrics.IncrementRefreshEvent(resultProcessed)
	c.logger.Debug(ctx, "Refresh request processed", "reason", req.Reason)
	return nil
}

func (c *RefreshConsumer) decode(subject string, data []byte) (domain.RefreshRequest, error) {
	var req domain.RefreshRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: %v", errInvalidRefreshRequest, err)
	}
	if req.Domain == "" {
		if i := strings.LastIndexByte(subject, '.'); i >= 0 {
			req.Domain = domain.CacheDomain(subject[i+1:])
		}
	}
	if !req.Domain.Valid() {
		return req, fmt.Errorf("%w: unknown cache domain %q", errInvalidRefreshRequest, req.Domain)
	}
	if req.TenantID == "" || req.UserID == "" {
		return req, fmt.Errorf("%w: tenant_id and user_id are required", errInvalidRefreshRequest)
	}
	return req, nil
}
