// Copyright 2025 The Logwarden Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/logwarden/logwarden/cnf"
	"github.com/logwarden/logwarden/pipeline"
	"github.com/logwarden/logwarden/registry"
	"github.com/logwarden/logwarden/stats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// -----

type apiServer struct {
	conf     *cnf.Conf
	server   *http.Server
	version  VersionInfo
	pipeline *pipeline.Pipeline
	regDB    *registry.DB
	results  *stats.Database
	metrics  *serverMetrics
}

// VersionInfo provides detailed information about the actual build
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

func (api *apiServer) Start(ctx context.Context) {
	if !api.conf.Logging.Level.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinMiddleware())
	engine.Use(corsMiddleware(api.conf))
	engine.NoMethod(uniresp.NoMethodHandler)
	engine.NoRoute(uniresp.NotFoundHandler)

	engine.GET("/version", api.handleVersion)
	engine.GET("/health", api.handleHealth)
	engine.POST("/score", api.handleScore)
	engine.POST("/training", api.handleTraining)
	engine.POST("/model/reload", api.handleModelReload)
	engine.GET("/model", api.handleModelInfo)
	engine.GET("/anomalies", api.handleAnomalies)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		api.metrics.registry, promhttp.HandlerOpts{})))

	log.Info().Msgf("starting to listen at %s:%d", api.conf.ListenAddress, api.conf.ListenPort)
	api.server = &http.Server{
		Handler:      engine,
		Addr:         fmt.Sprintf("%s:%d", api.conf.ListenAddress, api.conf.ListenPort),
		WriteTimeout: time.Duration(api.conf.ServerWriteTimeoutSecs) * time.Second,
		ReadTimeout:  time.Duration(api.conf.ServerReadTimeoutSecs) * time.Second,
	}
	go func() {
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()
}

func (api *apiServer) Stop(ctx context.Context) error {
	log.Warn().Msg("shutting down Logwarden HTTP API server")
	return api.server.Shutdown(ctx)
}

// -------------------------

func Run(ctx context.Context, conf *cnf.Conf, version VersionInfo) {
	regDB, err := registry.OpenDB(conf.RegistryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open artifact registry")
		return
	}
	defer regDB.Close()

	results, err := stats.NewDatabase(conf.ResultsDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open results database")
		return
	}
	defer results.Close()
	if err := results.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to init results database")
		return
	}

	pl := pipeline.NewPipeline(conf.Scoring)
	if err := pl.ReloadFrom(regDB); err != nil {
		if errors.Is(err, pipeline.ErrNoModelLoaded) {
			log.Warn().Msg("no model artifact available yet - train one to enable scoring")

		} else {
			log.Fatal().Err(err).Msg("failed to load model artifacts")
			return
		}
	}

	server := &apiServer{
		conf:     conf,
		version:  version,
		pipeline: pl,
		regDB:    regDB,
		results:  results,
		metrics:  newServerMetrics(),
	}

	services := []service{server}
	for _, m := range services {
		m.Start(ctx)
	}
	<-ctx.Done()
	log.Warn().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range services {
		wg.Add(1)
		go func(srv service) {
			defer wg.Done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Type("service", srv).Msg("Error shutting down service")
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all services stopped")
	case <-shutdownCtx.Done():
		log.Error().Msg("shutdown timeout exceeded")
	}
}
