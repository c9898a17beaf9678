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

package cnf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/logwarden/logwarden/models/iforest"
	"github.com/logwarden/logwarden/pipeline"
	"github.com/rs/zerolog/log"
)

const (
	dfltServerReadTimeoutSecs  = 10
	dfltServerWriteTimeoutSecs = 30
	dfltTimeZone               = "UTC"
	dfltRegistryPath           = "./data/registry"
	dfltResultsDBPath          = "./data/results.sqlite"
)

type Conf struct {
	srcPath                string
	Logging                logging.LoggingConf `json:"logging"`
	ListenAddress          string              `json:"listenAddress"`
	ListenPort             int                 `json:"listenPort"`
	PublicURL              string              `json:"publicUrl"`
	ServerReadTimeoutSecs  int                 `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int                 `json:"serverWriteTimeoutSecs"`
	CorsAllowedOrigins     []string            `json:"corsAllowedOrigins"`
	TimeZone               string              `json:"timeZone"`

	// RegistryPath is a directory for the model artifact registry.
	RegistryPath string `json:"registryPath"`

	// ResultsDBPath is the sqlite database file scored results
	// are appended to.
	ResultsDBPath string `json:"resultsDbPath"`

	Scoring  pipeline.ScoringConf `json:"scoring"`
	Training iforest.Conf         `json:"training"`
}

func (conf *Conf) GetSourcePath() string {
	return conf.srcPath
}

func LoadConfig(path string) *Conf {
	if path == "" {
		log.Fatal().Msg("Cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	var conf Conf
	conf.srcPath = path
	err = json.Unmarshal(rawData, &conf)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	return &conf
}

func ValidateAndDefaults(conf *Conf) {
	if conf.ServerReadTimeoutSecs == 0 {
		conf.ServerReadTimeoutSecs = dfltServerReadTimeoutSecs
	}
	if conf.ServerWriteTimeoutSecs == 0 {
		conf.ServerWriteTimeoutSecs = dfltServerWriteTimeoutSecs
		log.Warn().Msgf(
			"serverWriteTimeoutSecs not specified, using default: %d",
			dfltServerWriteTimeoutSecs,
		)
	}
	if conf.PublicURL == "" {
		conf.PublicURL = fmt.Sprintf("http://%s", conf.ListenAddress)
		log.Warn().Str("address", conf.PublicURL).Msg("publicUrl not set, using listenAddress")
	}
	if conf.TimeZone == "" {
		conf.TimeZone = dfltTimeZone
		log.Warn().
			Str("timeZone", dfltTimeZone).
			Msg("time zone not specified, using default")
	}
	if _, err := time.LoadLocation(conf.TimeZone); err != nil {
		log.Fatal().Err(err).Msg("invalid time zone")
	}
	if conf.RegistryPath == "" {
		conf.RegistryPath = dfltRegistryPath
		log.Warn().
			Str("registryPath", dfltRegistryPath).
			Msg("registryPath not specified, using default")
	}
	if conf.ResultsDBPath == "" {
		conf.ResultsDBPath = dfltResultsDBPath
		log.Warn().
			Str("resultsDbPath", dfltResultsDBPath).
			Msg("resultsDbPath not specified, using default")
	}
	conf.Scoring = conf.Scoring.WithDefaults()
	conf.Training = conf.Training.WithDefaults()
}
