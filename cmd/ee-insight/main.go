package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"ee-insight/api"
	"ee-insight/config"
	"ee-insight/earthengine"
	"ee-insight/logging"
	"ee-insight/metrics"
	"ee-insight/render"
	"ee-insight/static"
	"ee-insight/store"
	"ee-insight/tracker"
	"ee-insight/utils"
	"ee-insight/view"
)

// server keeps what survives a SIGHUP. Only the HTTP surface (JWT secret,
// static whitelist, template vars, log dir) is rebuilt on reload; Earth
// Engine and store settings need a restart.
type server struct {
	session *tracker.Session
	board   *view.Board
	layers  *render.LayerSet
	store   *store.Store
	metrics *metrics.Collector

	mux     atomic.Pointer[http.ServeMux]
	loggers []*logging.Logger
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.Load().ServeHTTP(w, r)
}

func main() {
	configFile := flag.String("config", "config.yaml", "Config file, relative to the project root")
	flag.Parse()

	utils.LogToFile("api.log")
	cfg := loadConfig(*configFile)

	mc, err := metrics.NewCollector(nil)
	if err != nil {
		log.Fatalf("Failed registering metrics: %v", err)
	}
	s := &server{metrics: mc, board: view.NewBoard(cfg.BannerTimeout())}
	s.layers = render.NewLayerSet(mc)

	if cfg.Store.Backend != "" {
		s.store, err = store.Open(cfg.Store.Backend, cfg.Store.DSN)
		if err != nil {
			log.Fatalf("Failed opening %s store: %v", cfg.Store.Backend, err)
		}
	}

	client := earthengine.NewClient(cfg.EarthEngine.APIURL,
		earthengine.WithToken(cfg.EarthEngine.Token),
		earthengine.WithTimeout(cfg.EarthEngine.RequestTimeout()),
	)
	s.reload(cfg)
	opts := tracker.Options{
		DataSources: cfg.EarthEngine.DataSources,
		Observer:    s.board,
		Layers:      s.layers,
		Metrics:     mc,
		Logger:      s.loggers[1],
	}
	if s.store != nil {
		opts.Recorder = s.store
	}
	s.session = tracker.NewSession(client, opts)
	s.board.SetSessionID(s.session.ID())
	s.mux.Store(s.buildMux(cfg))

	srv := &http.Server{Addr: cfg.Server.Listen, Handler: s}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigs {
			if sig == syscall.SIGHUP {
				log.Println("Reloading config...")
				newCfg, err := config.Load(*configFile)
				if err != nil {
					log.Printf("Reload failed, keeping previous config: %v", err)
					continue
				}
				s.reload(newCfg)
				s.mux.Store(s.buildMux(newCfg))
				continue
			}
			log.Printf("Received %s, shutting down", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			srv.Shutdown(ctx)
			cancel()
			return
		}
	}()

	log.Printf("Server started listening on %s (session %s)", cfg.Server.Listen, s.session.ID())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	s.session.Stop()
	if s.store != nil {
		s.store.Close()
	}
	for _, l := range s.loggers {
		l.Close()
	}
}

func loadConfig(file string) *config.Config {
	cfg, err := config.Load(file)
	if err != nil {
		log.Fatalf("Failed %s: %v", file, err)
	}
	return cfg
}

// reload opens the access and task loggers, or on SIGHUP switches the
// existing ones to the configured log dir. The loggers stay the same values
// so handlers still running on the previous mux keep a usable file.
func (s *server) reload(cfg *config.Config) {
	logDir := utils.ResolvePath(cfg.Server.LogDir)
	if err := utils.EnsureDirExists(logDir); err != nil {
		log.Fatalf("Failed creating %s: %v", logDir, err)
	}
	if len(s.loggers) == 0 {
		s.loggers = []*logging.Logger{
			logging.NewLoggerOrDie(logDir, "access.log"),
			logging.NewLoggerOrDie(logDir, "task.log"),
		}
		return
	}
	for i, name := range []string{"access.log", "task.log"} {
		if err := s.loggers[i].Reopen(logDir, name); err != nil {
			log.Printf("Reopening %s failed, keeping the previous file: %v", name, err)
		}
	}
}

func (s *server) buildMux(cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	d := &api.Deps{
		Secret:       cfg.JWT.Secret,
		MaxCells:     cfg.EarthEngine.MaxCells,
		Session:      s.session,
		Board:        s.board,
		Layers:       s.layers,
		Metrics:      s.metrics,
		AccessLogger: s.loggers[0],
	}
	if s.store != nil {
		d.Store = s.store
	}
	api.RegisterHandlers(mux, d)
	static.RegisterStaticHandler(mux, cfg, s.loggers[0])
	return mux
}
