package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vanshika/ledgerwatch/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		customers      = flag.Int("customers", cfg.NumCustomers, "number of customers to generate")
		operations     = flag.Int("operations", cfg.NumOperations, "number of operations to generate")
		burstChance    = flag.Float64("burst-chance", cfg.BurstChance, "probability that an operation starts a rapid withdrawal burst")
		largeChance    = flag.Float64("large-chance", cfg.LargeAmountChance, "probability that a deposit or transfer exceeds the large-amount threshold")
		checkingChance = flag.Float64("checking-chance", cfg.CheckingChance, "probability that a customer also gets a checking account")
		start          = flag.String("start", cfg.Start.Format(time.RFC3339), "RFC3339 timestamp of the first operation")
		seed           = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir      = flag.String("output-dir", "data", "directory to write workload.json")
		writeStdout    = flag.Bool("stdout", false, "write the workload to stdout instead of a file")
	)
	flag.Parse()

	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start: %v\n", err)
		os.Exit(1)
	}

	genCfg := generator.Config{
		NumCustomers:      *customers,
		NumOperations:     *operations,
		BurstChance:       clampProbability(*burstChance),
		LargeAmountChance: clampProbability(*largeChance),
		CheckingChance:    clampProbability(*checkingChance),
		Start:             startAt.UTC(),
		Seed:              *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	workload, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(workload); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write workload to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	path, err := generator.WriteWorkload(workload, *outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write workload: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d customers, %d accounts and %d operations into %s\n",
		len(workload.Customers), len(workload.Accounts), len(workload.Operations), path)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
