package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"garmentsapi/internal/api"
	"garmentsapi/internal/auth"
	"garmentsapi/internal/config"
	"garmentsapi/internal/db"
	"garmentsapi/internal/notify"
	"garmentsapi/internal/service"
	"garmentsapi/internal/store"
	"garmentsapi/internal/store/firestorestore"
	"garmentsapi/internal/store/mongostore"
	"garmentsapi/internal/version"
)

// backend is what every store implementation offers the server.
type backend interface {
	service.ProductRepository
	service.OrderRepository
	service.UserRepository
	Ping(ctx context.Context) error
	EnsureAdmin(ctx context.Context, email string) error
}

func openBackend(ctx context.Context, cfg config.Config) (backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = st.Close(ctx)
		}, nil
	case config.BackendFirestore:
		st, err := firestorestore.Connect(ctx, cfg.FirestoreProjectID, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		sqdb, err := db.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
		if err != nil {
			return nil, nil, err
		}
		if err := db.ApplyMigrationFile(sqdb, cfg.MigrationFile()); err != nil {
			_ = sqdb.Close()
			return nil, nil, err
		}
		return store.New(sqdb, cfg.DBDriver), func() { _ = sqdb.Close() }, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreBackend, err)
	}
	defer closeStore()
	if cfg.BootstrapAdminEmail != "" {
		if err := st.EnsureAdmin(ctx, cfg.BootstrapAdminEmail); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	}

	gate, err := auth.NewGate(auth.GateOptions{
		Secret:     cfg.JWTSecret,
		TTL:        cfg.JWTTTL(),
		CookieName: cfg.SessionCookieName,
		Production: cfg.Production(),
		SameSite:   cfg.CookieSameSite,
	})
	if err != nil {
		log.Fatalf("auth gate: %v", err)
	}
	opts := api.Options{Store: st}
	if cfg.FirebaseVerifyIDTokens {
		v, err := auth.NewFirebaseVerifier(ctx, cfg.FirestoreProjectID, cfg.GoogleCredentialsFile)
		if err != nil {
			log.Fatalf("firebase verifier: %v", err)
		}
		opts.Verifier = v
	} else {
		log.Printf("unverified_login_enabled app_env=%s login trusts the posted email", cfg.AppEnv)
	}

	repos := service.Repositories{Products: st, Orders: st, Users: st}
	svc := service.New(repos, service.StockMode(cfg.OrderStockMode), notify.NewSender(cfg))
	r := api.NewRouter(cfg, svc, gate, opts)

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		info := version.Current(cfg.StoreBackend, string(svc.StockMode()))
		log.Printf("listening addr=%s version=%s backend=%s stock_mode=%s notify=%s", cfg.ListenAddr, info.Version, info.Backend, info.StockMode, cfg.OrderNotifySender)
		errc <- hsrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTPShutdownTimeoutSec)*time.Second)
		defer cancel()
		if err := hsrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown_failed err=%v", err)
		}
	}
}
