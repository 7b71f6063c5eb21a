// Command worker consumes background jobs from the Redis queue, currently
// the invitation emails enqueued by the API server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/orgnest/orgnest/internal/config"
	"github.com/orgnest/orgnest/internal/logging"
	"github.com/orgnest/orgnest/internal/tasks"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 5,
			Queues:      map[string]int{tasks.QueueEmail: 1},
		},
	)

	sender := tasks.NewSendgridSender(cfg.Email.SendgridAPIKey)
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeInvitationEmail, tasks.NewInvitationHandler(sender, log))

	log.Info("worker starting", zap.String("queue", tasks.QueueEmail))

	// Run blocks until SIGINT/SIGTERM and drains in-flight tasks.
	return srv.Run(mux)
}
