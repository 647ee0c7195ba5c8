package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	offlinecache "github.com/offline-cache/offline-cache"
	"github.com/offline-cache/offline-cache/cache"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	portFlag           int
	originFlag         string
	dbFilenameFlag     string
	configFilenameFlag string
	versionFlag        string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&originFlag, "origin", "", "Origin URL to cache for")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&dbFilenameFlag, "db", "cache.db", "Cache DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&versionFlag, "version", "", "Cache version (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("build", version).Logger()

	engineConfig := offlinecache.Config{
		Logger: &log.Logger,
	}

	if configFilenameFlag != "" {
		config, err := getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
		engineConfig.Version = config.Version
		engineConfig.APIPrefix = config.APIPrefix
		engineConfig.PrecachePaths = config.Precache
		engineConfig.FallbackPath = config.FallbackPath
		if len(config.Limits) > 0 {
			engineConfig.Limits = config.Limits
		}
	}

	if versionFlag != "" {
		engineConfig.Version = versionFlag
	}

	// set up sqlite provider
	dbFilename := dbFilenameFlag
	if dbFilename == "memory" {
		dbFilename = ""
	}
	engineConfig.Cache = cache.NewSQLiteCache(dbFilename)

	// get the origin server address
	if originFlag == "" {
		log.Fatal().Msg("Please specify origin")
	}
	originUrl, err := url.Parse(originFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}
	engineConfig.OriginURL = *originUrl

	engine := offlinecache.New(engineConfig)

	// install + activate immediately: the gateway is the only instance,
	// there is never a previous one to wait for
	if err := engine.Install(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Install failed")
	}
	engine.Activate()

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = originUrl.Scheme
			req.URL.Host = originUrl.Host
		},
		Transport: engine,
	}

	r := chi.NewRouter()
	r.Post("/-/offline-cache/message", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		msg, err := offlinecache.ParseMessage(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		engine.HandleMessage(msg)
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/*", proxy)

	log.Info().Msgf("Caching port %v for %s", portFlag, originUrl.String())
	if err := http.ListenAndServe(fmt.Sprintf(":%d", portFlag), r); err != nil {
		panic(err)
	}
}
