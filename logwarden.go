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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/logwarden/logwarden/apiserver"
	"github.com/logwarden/logwarden/cnf"
)

const (
	actionServer   = "server"
	actionTrain    = "train"
	actionScore    = "score"
	actionGenerate = "generate"
	actionReplay   = "replay"
	actionVersion  = "version"
	actionHelp     = "help"

	exitErrorGeneralFailure = iota
	exitErrorTrainingFailed
	exitErrorScoringFailed
	exitErrorGenerateFailed
	exitErrorReplayFailed
)

var (
	version   string
	buildDate string
	gitCommit string
)

func topLevelUsage() {
	fmt.Fprintf(os.Stderr, "LOGWARDEN - an access-log anomaly detection service\n")
	fmt.Fprintf(os.Stderr, "-----------------------------\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tshow version info\n", actionVersion)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\trun the HTTP API server\n", actionServer)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\ttrain a model on a normal-traffic corpus\n", actionTrain)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tscore a log file against stored models\n", actionScore)
	fmt.Fprintf(os.Stderr, "\t%s\t\tgenerate synthetic log traffic\n", actionGenerate)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\treplay a log file against a running server\n", actionReplay)
	fmt.Fprintf(os.Stderr, "\nUse `logwarden help ACTION` for information about a specific action\n\n")
}

func setup(confPath string) *cnf.Conf {
	conf := cnf.LoadConfig(confPath)
	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	logging.SetupLogging(conf.Logging)
	cnf.ValidateAndDefaults(conf)
	return conf
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func main() {
	version := apiserver.VersionInfo{
		Version:   cleanVersionInfo(version),
		BuildDate: cleanVersionInfo(buildDate),
		GitCommit: cleanVersionInfo(gitCommit),
	}

	cmdServer := flag.NewFlagSet(actionServer, flag.ExitOnError)
	cmdServer.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s config.json\n",
			filepath.Base(os.Args[0]), actionServer)
		cmdServer.PrintDefaults()
	}

	cmdTrain := flag.NewFlagSet(actionTrain, flag.ExitOnError)
	trainKind := cmdTrain.String("kind", "density", "model kind to train (baseline|density)")
	trainFormat := cmdTrain.String("format", "structured", "input format (structured|combined-text)")
	trainDesc := cmdTrain.String("description", "", "free-form description stored with the artifact")
	trainNumTrees := cmdTrain.Int("num-trees", 0, "number of isolation trees (0 = configured default)")
	trainSubsample := cmdTrain.Int("subsample", 0, "subsample size per tree (0 = configured default)")
	trainContamination := cmdTrain.Float64("contamination", 0, "expected anomaly rate used to calibrate the threshold (0 = configured default)")
	trainSeed := cmdTrain.Uint64("seed", 0, "random seed for reproducible fitting (0 = configured default)")
	cmdTrain.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json corpus.log\n",
			filepath.Base(os.Args[0]), actionTrain)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdTrain.PrintDefaults()
	}

	cmdScore := flag.NewFlagSet(actionScore, flag.ExitOnError)
	scoreFormat := cmdScore.String("format", "structured", "input format (structured|combined-text)")
	scoreStore := cmdScore.Bool("store", false, "if set, persist results into the configured results database")
	cmdScore.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json input.log\n",
			filepath.Base(os.Args[0]), actionScore)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdScore.PrintDefaults()
	}

	cmdGenerate := flag.NewFlagSet(actionGenerate, flag.ExitOnError)
	genCount := cmdGenerate.Int("count", 500, "number of records to generate")
	genAttackRatio := cmdGenerate.Float64("attack-ratio", 0, "share of attack-shaped records (0 = clean normal corpus)")
	genFormat := cmdGenerate.String("format", "structured", "output format (structured|combined-text)")
	genSeed := cmdGenerate.Uint64("seed", 1, "random seed")
	cmdGenerate.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options]\n",
			filepath.Base(os.Args[0]), actionGenerate)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdGenerate.PrintDefaults()
	}

	cmdReplay := flag.NewFlagSet(actionReplay, flag.ExitOnError)
	replayFormat := cmdReplay.String("format", "structured", "input format (structured|combined-text)")
	replayBatchSize := cmdReplay.Int("batch-size", 100, "number of lines per request")
	cmdReplay.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] server_url input.log\n",
			filepath.Base(os.Args[0]), actionReplay)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdReplay.PrintDefaults()
	}

	cmdVersion := flag.NewFlagSet(actionVersion, flag.ExitOnError)
	cmdHelp := flag.NewFlagSet(actionHelp, flag.ExitOnError)

	action := actionHelp
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	switch action {
	case actionHelp:
		var subj string
		if len(os.Args) > 2 {
			cmdHelp.Parse(os.Args[2:])
			subj = cmdHelp.Arg(0)
		}
		if subj == "" {
			topLevelUsage()
			return
		}
		switch subj {
		case actionServer:
			cmdServer.PrintDefaults()
		case actionTrain:
			cmdTrain.PrintDefaults()
		case actionScore:
			cmdScore.PrintDefaults()
		case actionGenerate:
			cmdGenerate.PrintDefaults()
		case actionReplay:
			cmdReplay.PrintDefaults()
		}
	case actionVersion:
		cmdVersion.Parse(os.Args[2:])
		fmt.Fprintln(os.Stderr, "Logwarden version: ", version)
	case actionServer:
		cmdServer.Parse(os.Args[2:])
		conf := setup(cmdServer.Arg(0))
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		apiserver.Run(ctx, conf, version)
	case actionTrain:
		cmdTrain.Parse(os.Args[2:])
		conf := setup(cmdTrain.Arg(0))
		trainingConf := conf.Training
		if *trainNumTrees > 0 {
			trainingConf.NumTrees = *trainNumTrees
		}
		if *trainSubsample > 0 {
			trainingConf.SubsampleSize = *trainSubsample
		}
		if *trainContamination > 0 {
			trainingConf.Contamination = *trainContamination
		}
		if *trainSeed > 0 {
			trainingConf.Seed = *trainSeed
		}
		runActionTrain(conf, cmdTrain.Arg(1), *trainKind, *trainFormat, *trainDesc, trainingConf)
	case actionScore:
		cmdScore.Parse(os.Args[2:])
		conf := setup(cmdScore.Arg(0))
		runActionScore(conf, cmdScore.Arg(1), *scoreFormat, *scoreStore)
	case actionGenerate:
		cmdGenerate.Parse(os.Args[2:])
		runActionGenerate(*genCount, *genAttackRatio, *genFormat, *genSeed)
	case actionReplay:
		cmdReplay.Parse(os.Args[2:])
		runActionReplay(cmdReplay.Arg(0), cmdReplay.Arg(1), *replayFormat, *replayBatchSize)
	default:
		fmt.Fprintf(os.Stderr, "Unknown action, please use 'help' to get more information")
	}
}
