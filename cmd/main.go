package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/asaskevich/EventBus"
	"github.com/jobdesk/autoapply/internal/clients/boards"
	"github.com/jobdesk/autoapply/internal/clients/gemini"
	"github.com/jobdesk/autoapply/internal/clients/ses"
	"github.com/jobdesk/autoapply/internal/config"
	"github.com/jobdesk/autoapply/internal/logger"
	"github.com/jobdesk/autoapply/internal/metrics"
	"github.com/jobdesk/autoapply/internal/repositories"
	"github.com/jobdesk/autoapply/internal/services"
	log "github.com/sirupsen/logrus"
)

func buildArtifactBuilder(ctx context.Context, cfg *config.Config,
	profiles *repositories.CachedProfiles) (*services.ArtifactBuilder, error) {

	if cfg.AI.Key == "" {
		log.Info("no AI key configured, cover letters use the template fallback")
		return services.NewArtifactBuilder(profiles, nil)
	}

	model := gemini.Model(cfg.AI.Model)
	if model == "" {
		model = gemini.Model15Flash
	}

	aiClient, err := gemini.NewClient(ctx, cfg.AI.Key, model)
	if err != nil {
		return nil, err
	}
	aiClient.SetMinuteRateLimit(cfg.AI.MaxRequestsPerMinute)
	aiClient.SetDayRateLimit(cfg.AI.MaxRequestsPerDay)

	return services.NewArtifactBuilder(profiles, aiClient)
}

func buildChannels(cfg *config.Config, sesClient *ses.Client,
	profiles *repositories.CachedProfiles) []services.NotificationChannel {

	channels := []services.NotificationChannel{
		services.NewInAppChannel(),
		services.NewEmailChannel(sesClient, profiles),
	}

	if cfg.Notifier.TelegramToken != "" {
		telegram, err := services.NewTelegramChannel(cfg.Notifier.TelegramToken, profiles)
		if err != nil {
			log.Errorf("can't create telegram channel, continuing without it: %v", err)
		} else {
			channels = append(channels, telegram)
		}
	}

	return channels
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer()

	dbContext, err := repositories.NewDbContext(cfg.DB.ConnectionString)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	if err = dbContext.Migrate(); err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	applications := repositories.NewApplicationsRepository(dbContext.DB, cfg.Pipeline.RetryCooldown)
	postings := repositories.NewPostingsRepository(dbContext.DB)
	profiles := repositories.NewCachedProfiles(repositories.NewProfilesRepository(dbContext.DB))
	notifications := repositories.NewNotificationsRepository(dbContext.DB)

	sesClient, err := ses.NewClient(ctx, cfg.Email.Region, cfg.Email.SenderAddress)
	if err != nil {
		log.Fatalf("can't create ses client: %v", err)
	}
	sesClient.SetRateLimit(cfg.Email.MaxSendsPerSecond)

	bus := EventBus.New()

	dispatcher, err := services.NewDispatcher(bus, notifications,
		buildChannels(cfg, sesClient, profiles), cfg.Notifier.QueueSize, cfg.Notifier.RetryBackoff)
	if err != nil {
		log.Fatalf("can't create notification dispatcher: %v", err)
	}
	go dispatcher.Run(ctx)

	builder, err := buildArtifactBuilder(ctx, cfg, profiles)
	if err != nil {
		log.Fatalf("can't create artifact builder: %v", err)
	}

	filter, err := services.NewEligibilityFilter(cfg.Pipeline.EligibilityWindow)
	if err != nil {
		log.Fatalf("can't create eligibility filter: %v", err)
	}

	matcher := services.NewPreferenceMatcher(
		repositories.NewProfilesRepository(dbContext.DB), cfg.Pipeline.MaxCandidatesPerJob)

	orchestrator, err := services.NewOrchestrator(bus, applications, postings, matcher,
		builder, sesClient, filter, cfg.Pipeline)
	if err != nil {
		log.Fatalf("can't create orchestrator: %v", err)
	}
	go orchestrator.Run(ctx)

	reconciler, err := services.NewReconciler(applications,
		cfg.Pipeline.ReservationTimeout, cfg.Pipeline.ReconcileCronSpec)
	if err != nil {
		log.Fatalf("can't create reconciler: %v", err)
	}
	defer reconciler.Stop()

	if cfg.Ingest.BoardAPIURL != "" {
		boardClient := boards.NewClient(cfg.Ingest.BoardAPIURL)
		boardClient.SetRateLimit(cfg.Ingest.MaxRequestsPerSecond)

		syncer, err := services.NewPostingSyncer(boardClient, postings,
			cfg.Pipeline.EligibilityWindow, cfg.Pipeline.SyncCronSpec)
		if err != nil {
			log.Fatalf("can't create posting syncer: %v", err)
		}
		defer syncer.Stop()
	} else {
		log.Info("no board API configured, posting sync disabled")
	}

	<-ctx.Done()
	log.Info("Shutting down services...")
}
