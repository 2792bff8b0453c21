// Command enqueue publishes a scrape job for the given URLs and prints its
// correlation id.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"fynex/config"
	"fynex/pkg/kafka"
	"fynex/queue"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	timeout := flag.Duration("timeout", 30*time.Second, "publish timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-config path] url [url...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	kc, err := kafka.NewClient(ctx, cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("failed to connect to kafka", zap.Error(err))
	}
	defer kc.Close()

	job := queue.NewScrapeJob(flag.Args())
	if len(job.URLs) == 0 {
		logger.Fatal("no valid http(s) URLs given")
	}
	if err := queue.NewProducer(kc, cfg.Kafka.JobsTopic, logger).Enqueue(ctx, job); err != nil {
		logger.Fatal("failed to enqueue job", zap.Error(err))
	}

	fmt.Println(job.CorrelationID)
}
