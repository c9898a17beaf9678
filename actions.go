package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/logwarden/logwarden/cnf"
	"github.com/logwarden/logwarden/logparse"
	"github.com/logwarden/logwarden/models/iforest"
	"github.com/logwarden/logwarden/pipeline"
	"github.com/logwarden/logwarden/registry"
	"github.com/logwarden/logwarden/replay"
	"github.com/logwarden/logwarden/stats"
	"github.com/logwarden/logwarden/synthetic"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

const (
	errColor     = color.FgHiRed
	anomalyColor = color.FgHiYellow

	// some access-log lines (huge referrers, abusive requests) can be
	// quite long
	scanBufferCapacity = 1024 * 1024
)

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, scanBufferCapacity), scanBufferCapacity)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return lines, nil
}

func runActionTrain(
	conf *cnf.Conf,
	srcPath, kind, format, description string,
	trainingConf iforest.Conf,
) {
	lines, err := readLines(srcPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorTrainingFailed)
	}

	bar := progressbar.Default(int64(len(lines)), "parsing corpus")
	corpus := make([]logparse.Record, 0, len(lines))
	for i, line := range lines {
		bar.Add(1)
		if len(line) == 0 {
			continue
		}
		rec, err := logparse.ParseLine(line, logparse.Format(format))
		if err != nil {
			color.New(errColor).Fprintf(os.Stderr, "corpus line %d: %s\n", i+1, err)
			os.Exit(exitErrorTrainingFailed)
		}
		corpus = append(corpus, rec)
	}

	t0 := time.Now()
	art, err := pipeline.Train(corpus, kind, trainingConf, description)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorTrainingFailed)
	}

	regDB, err := registry.OpenDB(conf.RegistryPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorTrainingFailed)
	}
	defer regDB.Close()
	version, err := regDB.Save(art)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorTrainingFailed)
	}
	log.Info().
		Str("kind", kind).
		Str("version", version).
		Dur("procTime", time.Since(t0)).
		Msg("model trained and stored")
	fmt.Println(version)
}

func runActionScore(conf *cnf.Conf, srcPath, format string, store bool) {
	lines, err := readLines(srcPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoringFailed)
	}

	regDB, err := registry.OpenDB(conf.RegistryPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoringFailed)
	}
	defer regDB.Close()

	pl := pipeline.NewPipeline(conf.Scoring)
	if err := pl.ReloadFrom(regDB); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoringFailed)
	}
	results, err := pl.ScoreBatch(lines, logparse.Format(format))
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoringFailed)
	}

	numAnomalies := 0
	for _, result := range results {
		data, err := json.Marshal(result)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorScoringFailed)
		}
		if result.IsAnomaly {
			numAnomalies++
			color.New(anomalyColor).Println(string(data))

		} else {
			fmt.Println(string(data))
		}
	}
	if store {
		db, err := stats.NewDatabase(conf.ResultsDBPath)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorScoringFailed)
		}
		defer db.Close()
		if err := db.Init(); err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorScoringFailed)
		}
		if err := db.AddResults(results); err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorScoringFailed)
		}
	}
	fmt.Fprintf(
		os.Stderr, "scored %d records, %d anomalies\n", len(results), numAnomalies)
}

func runActionReplay(serverURL, srcPath, format string, batchSize int) {
	lines, err := readLines(srcPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorReplayFailed)
	}
	executor := replay.NewExecutor(serverURL, batchSize)
	summary, err := executor.RunFull(lines, logparse.Format(format))
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorReplayFailed)
	}
	fmt.Fprintf(
		os.Stderr,
		"replayed %d events in %d batches (%.0f events/s), %d anomalies, %d parse failures\n",
		summary.Events, summary.Batches, summary.EventsPerSec,
		summary.Anomalies, summary.ParseFailures)
}

func runActionGenerate(count int, attackRatio float64, format string, seed uint64) {
	gen := synthetic.NewGenerator(seed)
	startTime := time.Now().Add(-time.Duration(count) * time.Second)
	recs := gen.Mixed(count, attackRatio, startTime)

	var lines []string
	switch logparse.Format(format) {
	case logparse.FormatStructured:
		var err error
		lines, err = synthetic.ToStructuredLines(recs)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorGenerateFailed)
		}
	case logparse.FormatCombined:
		lines = synthetic.ToCombinedLines(recs)
	default:
		color.New(errColor).Fprintf(os.Stderr, "unsupported format '%s'\n", format)
		os.Exit(exitErrorGenerateFailed)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
}
