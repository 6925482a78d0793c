package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"code.linksmart.eu/dt/page-deployer/deployer/env"
)

func main() {
	logFlags := 0
	if env.LogTimestamps {
		logFlags = log.LstdFlags
	}
	if env.Verbose {
		logFlags |= log.Lshortfile
	}
	log.SetFlags(logFlags)
	log.Println("started page deployer")
	defer log.Println("bye.")

	conf, err := loadConf()
	if err != nil {
		log.Fatalf("Error loading config: %s", err)
	}

	ctx := context.Background()

	hosting, err := newGithubHost(ctx, conf.githubToken)
	if err != nil {
		log.Fatalf("Error creating hosting client: %s", err)
	}
	login, _ := hosting.Account()
	log.Println("Hosting account:", login)

	gen, err := newGeminiGenerator(ctx, conf.geminiKey, conf.CodeModel, conf.ReadmeModel)
	if err != nil {
		log.Fatalf("Error creating generation client: %s", err)
	}

	events := newEventBus()
	reg := newRegistry(events)
	orch := newOrchestrator(
		gen,
		newPublisher(hosting, conf.pagesSettle()),
		newNotifier(conf.NotifyTries, conf.notifyDelay()),
		reg,
	)

	go startRESTAPI(conf.BindAddr, &restAPI{
		secret:       conf.secret,
		orchestrator: orch,
		registry:     reg,
		events:       events,
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}
