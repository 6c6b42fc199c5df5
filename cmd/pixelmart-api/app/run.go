package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/aq2208/pixelmart-api/configs"
	"github.com/aq2208/pixelmart-api/internal/adapter/cache"
	"github.com/aq2208/pixelmart-api/internal/adapter/docstore"
	"github.com/aq2208/pixelmart-api/internal/adapter/gateway"
	"github.com/aq2208/pixelmart-api/internal/adapter/http"
	"github.com/aq2208/pixelmart-api/internal/adapter/http/middleware"
	"github.com/aq2208/pixelmart-api/internal/adapter/kafka"
	"github.com/aq2208/pixelmart-api/internal/adapter/observ"
	"github.com/aq2208/pixelmart-api/internal/adapter/queue"
	"github.com/aq2208/pixelmart-api/internal/adapter/repo"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/pricing"
	"github.com/aq2208/pixelmart-api/internal/security"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg     configs.Config
	log     *slog.Logger
	server  *nethttp.Server
	sweeper *usecase.Sweeper
	workers []func(ctx context.Context) error
}

// cleanups runs registered closers in reverse order.
type cleanups []func()

func (c *cleanups) add(f func()) { *c = append(*c, f) }

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	logger := logging.Init(cfg.App.Name, logging.Options{
		FilePath:   cfg.Logging.FilePath,
		Level:      cfg.App.LogLevel,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	logger.Info("pixelmart-api: starting up", "store", cfg.Store.Driver, "latch", cfg.Latch.Driver)

	var closers cleanups
	fail := func(err error) (*App, func(), error) {
		closers.run()
		return nil, nil, err
	}

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closers.add(func() { _ = rdb.Close() })
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fail(fmt.Errorf("redis ping: %w", err))
	}

	store, err := initStore(ctx, cfg, rdb, &closers)
	if err != nil {
		return fail(err)
	}

	orders := repo.NewDocOrderRepo(store)
	coupons := repo.NewDocCouponRepo(store)
	catalog := repo.NewDocCatalogRepo(store)
	carts := repo.NewDocCartRepo(store)
	wishlists := repo.NewDocWishlistRepo(store)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisCache(rdb, cfg.Cache.TTL)

	// keys
	km, err := security.LoadKeyMaterial(cfg)
	if err != nil {
		return fail(fmt.Errorf("load keys: %w", err))
	}
	var sealer usecase.Sealer
	if km.AESKey != nil {
		s, err := security.NewSealer(km)
		if err != nil {
			return fail(err)
		}
		sealer = s
	}
	signer, err := security.NewDownloadSigner(km, cfg.Security.JWTSecret, cfg.Security.Issuer)
	if err != nil {
		return fail(err)
	}

	// gRPC: payment gateway bridge
	gwConn, closeGW, err := InitGatewayConn(cfg)
	if err != nil {
		return fail(fmt.Errorf("gateway conn: %w", err))
	}
	closers.add(closeGW)
	gw := gateway.NewClientFromConn(gwConn, gateway.Credentials{
		ClientID:     cfg.Gateway.ClientID,
		ClientSecret: cfg.Gateway.ClientSecret,
		APIVersion:   cfg.Gateway.APIVersion,
	}, cfg.Gateway.CallTimeout, "pixelmart-api")

	metrics := observ.NewRecorder(prometheus.DefaultRegisterer)
	sessions := usecase.NewSessions(carts, wishlists)
	closers.add(sessions.CloseAll)

	a := &App{cfg: cfg, log: logger}

	// cart clearing after a verified payment
	var cartClearer usecase.CartClearer = sessions
	if cfg.Rabbit.Enabled {
		signal, err := a.setupRabbit(cfg, sessions, &closers)
		if err != nil {
			return fail(fmt.Errorf("rabbitmq: %w", err))
		}
		cartClearer = signal
	}

	var events usecase.OrderEvents
	if cfg.Kafka.Enabled {
		pub, err := a.setupKafka(cfg, orders, statusCache, &closers)
		if err != nil {
			return fail(fmt.Errorf("kafka: %w", err))
		}
		events = pub
	}

	clamp, err := pricing.ParseClampPolicy(cfg.Pricing.DiscountClamp)
	if err != nil {
		return fail(err)
	}
	sweepMode, err := usecase.ParseSweepMode(cfg.Reconcile.Mode)
	if err != nil {
		return fail(err)
	}

	// use cases
	resolver := usecase.NewCouponResolver(coupons)
	builder := usecase.NewOrderBuilder(orders, usecase.OrderBuilderConfig{
		IDPrefix:          cfg.Checkout.OrderIDPrefix,
		PhoneCountryCode:  cfg.Checkout.PhoneCountryCode,
		Clamp:             clamp,
		RejectIDCollision: cfg.Checkout.RejectIDCollision,
	})
	initiator := usecase.NewSessionInitiator(gw, orders, usecase.SessionConfig{
		FrontendOrigin: cfg.Gateway.FrontendOrigin,
		NotifyURL:      cfg.Gateway.NotifyURL,
		Currency:       cfg.Gateway.Currency,
	}, metrics)
	checkout := usecase.NewCheckout(resolver, builder, initiator, orders, idem, statusCache)
	unlocker := usecase.NewAssetUnlocker(catalog, sealer)
	verifier := usecase.NewVerifier(orders, gw, unlocker, cartClearer, events, metrics, usecase.VerifierConfig{
		MinDisplay: cfg.Verification.MinDisplay,
	})
	downloads := usecase.NewDownloadAuthorizer(orders, signer, sealer, usecase.DownloadConfig{
		PublicBaseURL: cfg.Downloads.PublicBaseURL,
		TTL:           cfg.Downloads.TTL,
	})
	a.sweeper = usecase.NewSweeper(orders, verifier, sweepMode, cfg.Reconcile.PendingTimeout)

	// verification latch: nil keeps one per signed-in session
	var latch usecase.IdempotencyStore
	if cfg.Latch.Driver == "redis" {
		latch = cache.NewRedisIdempotencyStore(rdb, cfg.Latch.TTL)
	}

	// init handlers + routers + middleware
	router := http.NewRouter(http.Handlers{
		Orders:    http.NewOrderHandler(checkout, verifier, orders, statusCache, sessions, latch),
		Cart:      http.NewCartHandler(sessions, catalog, checkout),
		Coupons:   http.NewCouponHandler(resolver),
		Downloads: http.NewDownloadHandler(downloads),
		Session:   http.NewSessionHandler(sessions),
	}, middleware.NewAuthn(middleware.AuthConfig{
		Secret:   cfg.Security.JWTSecret,
		Issuer:   cfg.Security.Issuer,
		Audience: cfg.Security.Audience,
	}), logger)

	a.server = &nethttp.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return a, closers.run, nil
}

func initStore(ctx context.Context, cfg configs.Config, rdb *redis.Client, closers *cleanups) (docstore.Store, error) {
	if cfg.Store.Driver != "mysql" {
		return docstore.NewRedisStore(rdb, cfg.Store.KeyPrefix), nil
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	closers.add(func() { _ = db.Close() })
	db.SetConnMaxLifetime(orDuration(cfg.MySQL.ConnMaxLifetime, 30*time.Minute))
	db.SetMaxOpenConns(orInt(cfg.MySQL.MaxOpenConns, 16))
	db.SetMaxIdleConns(orInt(cfg.MySQL.MaxIdleConns, 16))

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	s := docstore.NewMySQLStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("mysql schema: %w", err)
	}
	return s, nil
}

// setupRabbit declares the cart topology, starts the consumer that clears
// carts, and returns the publisher the verifier signals through.
func (a *App) setupRabbit(cfg configs.Config, carts usecase.CartClearer, closers *cleanups) (*queue.CartClearSignal, error) {
	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, err
	}
	closers.add(func() { _ = conn.Close() })

	pubCh, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	topo := queue.Topology{Exchange: cfg.Rabbit.Exchange, RoutingKey: cfg.Rabbit.RoutingKey, Queue: cfg.Rabbit.Queue}
	if err := queue.DeclareTopology(pubCh, topo); err != nil {
		return nil, err
	}

	subCh, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	h := queue.NewCartClearHandler(carts)
	router := queue.NewRouter(subCh, queue.WithPrefetch(cfg.Rabbit.Prefetch))
	router.Register(topo.Queue, queue.JSONHandler[usecase.CartClearMsg]{HandleFunc: h.HandleClear})
	a.workers = append(a.workers, func(ctx context.Context) error {
		if err := router.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		router.Wait()
		return nil
	})

	return queue.NewCartClearSignal(pubCh, topo), nil
}

// setupKafka returns the status publisher and registers the listener that
// applies status events from other instances.
func (a *App) setupKafka(cfg configs.Config, orders usecase.OrderRepo, c usecase.OrderCache, closers *cleanups) (*kafka.StatusPublisher, error) {
	producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	pub := kafka.NewStatusPublisher(producer, cfg.Kafka.TopicEvents)
	closers.add(func() { _ = pub.Close() })

	if cfg.Kafka.GroupID == "" {
		return pub, nil
	}
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return nil, err
	}
	closers.add(func() { _ = grp.Close() })

	h := kafka.NewOrderStatusChangedHandler(orders, c)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicEvents}, h.Handle)
	a.workers = append(a.workers, consumer.Start)
	return pub, nil
}

// Run serves HTTP and the background workers until ctx is done, then shuts
// the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx = logging.WithCtx(ctx, a.log)

	for _, w := range a.workers {
		go func(w func(context.Context) error) {
			if err := w(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("background worker stopped", "err", err)
			}
		}(w)
	}
	go a.sweeper.Run(ctx, a.cfg.Reconcile.Interval)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

func orInt(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

func orDuration(v, d time.Duration) time.Duration {
	if v <= 0 {
		return d
	}
	return v
}
