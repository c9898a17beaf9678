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
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/czcorpus/cnc-gokit/unireq"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/logwarden/logwarden/logparse"
	"github.com/logwarden/logwarden/models"
	"github.com/logwarden/logwarden/pipeline"
	"github.com/logwarden/logwarden/registry"
	"github.com/rs/zerolog/log"
)

const dfltAnomaliesLimit = 50

type scoreRequest struct {
	Format logparse.Format `json:"format"`
	Lines  []string        `json:"lines"`
}

type scoreResponse struct {
	Received      int                      `json:"received"`
	Anomalies     int                      `json:"anomalies"`
	ParseFailures int                      `json:"parseFailures"`
	Results       []pipeline.AnomalyResult `json:"results"`
}

type trainingRequest struct {
	Kind          string          `json:"kind"`
	Format        logparse.Format `json:"format"`
	Lines         []string        `json:"lines"`
	Description   string          `json:"description"`
	NumTrees      *int            `json:"numTrees"`
	SubsampleSize *int            `json:"subsampleSize"`
	Contamination *float64        `json:"contamination"`
	Seed          *uint64         `json:"seed"`
}

func (api *apiServer) handleVersion(ctx *gin.Context) {
	uniresp.WriteJSONResponse(ctx.Writer, api.version)
}

func (api *apiServer) handleHealth(ctx *gin.Context) {
	info := api.pipeline.LoadedInfo()
	uniresp.WriteJSONResponse(ctx.Writer, map[string]any{
		"status":      "ok",
		"modelLoaded": info.Baseline != nil || info.Density != nil,
	})
}

func (api *apiServer) handleScore(ctx *gin.Context) {
	var req scoreRequest
	if err := ctx.BindJSON(&req); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	if err := req.Format.Validate(); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	results, err := api.pipeline.ScoreBatch(req.Lines, req.Format)
	if errors.Is(err, pipeline.ErrNoModelLoaded) {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusConflict)
		return
	}
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	if err := api.results.AddResults(results); err != nil {
		log.Error().Err(err).Msg("failed to persist scored batch")
	}

	resp := scoreResponse{Received: len(results), Results: results}
	for _, result := range results {
		if result.IsAnomaly {
			resp.Anomalies++
		}
		if result.ParseFailed {
			resp.ParseFailures++
		}
	}
	api.metrics.eventsTotal.Add(float64(resp.Received))
	api.metrics.anomalies.Add(float64(resp.Anomalies))
	api.metrics.parseFailures.Add(float64(resp.ParseFailures))
	api.metrics.lastIngest.SetToCurrentTime()
	uniresp.WriteJSONResponse(ctx.Writer, resp)
}

func (api *apiServer) handleTraining(ctx *gin.Context) {
	var req trainingRequest
	if err := ctx.BindJSON(&req); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	if err := req.Format.Validate(); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	corpus, err := pipeline.ParseCorpus(req.Lines, req.Format)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusUnprocessableEntity)
		return
	}
	trainingConf := api.conf.Training
	if req.NumTrees != nil {
		trainingConf.NumTrees = *req.NumTrees
	}
	if req.SubsampleSize != nil {
		trainingConf.SubsampleSize = *req.SubsampleSize
	}
	if req.Contamination != nil {
		trainingConf.Contamination = *req.Contamination
	}
	if req.Seed != nil {
		trainingConf.Seed = *req.Seed
	}

	t0 := time.Now()
	art, err := pipeline.Train(corpus, req.Kind, trainingConf, req.Description)
	if errors.Is(err, models.ErrInsufficientData) {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusUnprocessableEntity)
		return
	}
	if errors.Is(err, models.ErrNoSuchModel) {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return
	}
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	version, err := api.regDB.Save(art)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	if err := api.pipeline.ReloadFrom(api.regDB); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	log.Info().
		Str("kind", req.Kind).
		Str("version", version).
		Dur("procTime", time.Since(t0)).
		Msg("trained and activated new model")
	uniresp.WriteJSONResponse(ctx.Writer, map[string]any{
		"version":    version,
		"kind":       req.Kind,
		"corpusSize": len(corpus),
		"threshold":  art.Threshold,
	})
}

func (api *apiServer) handleModelReload(ctx *gin.Context) {
	err := api.pipeline.ReloadFrom(api.regDB)
	if errors.Is(err, pipeline.ErrNoModelLoaded) {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusNotFound)
		return
	}
	if errors.Is(err, registry.ErrSchemaMismatch) {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusConflict)
		return
	}
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, api.pipeline.LoadedInfo())
}

func (api *apiServer) handleModelInfo(ctx *gin.Context) {
	info := api.pipeline.LoadedInfo()
	if info.Baseline == nil && info.Density == nil {
		uniresp.RespondWithErrorJSON(
			ctx, pipeline.ErrNoModelLoaded, http.StatusNotFound)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, info)
}

func (api *apiServer) handleAnomalies(ctx *gin.Context) {
	limit, ok := unireq.GetURLIntArgOrFail(ctx, "limit", dfltAnomaliesLimit)
	if !ok {
		return
	}
	var minScore float64
	if raw := ctx.Query("minScore"); raw != "" {
		var err error
		minScore, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
			return
		}
	}
	anomalies, err := api.results.Anomalies(limit, minScore)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	metrics, err := api.results.GetMetrics()
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, map[string]any{
		"anomalies": anomalies,
		"metrics":   metrics,
	})
}
