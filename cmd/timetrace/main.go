package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"timetrace/internal/bot"
	"timetrace/internal/config"
	"timetrace/internal/lunar"
	"timetrace/internal/repository"
	"timetrace/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("resolve timezone: %v", err)
	}
	time.Local = loc

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	feed := repository.NewChangeFeed()
	scheduleRepo := repository.NewScheduleRepository(db, feed)
	routineRepo := repository.NewRoutineRepository(db, feed)
	diaryRepo := repository.NewDiaryRepository(db, feed)

	scheduleSvc := service.NewScheduleService(scheduleRepo, lunar.Converter{}, cfg.BirthdayYearsAhead, cfg.Debounce)
	routineSvc := service.NewRoutineService(routineRepo, scheduleRepo, cfg.HorizonDays)
	summarySvc := service.NewSummaryService(scheduleSvc)
	diarySvc := service.NewDiaryService(diaryRepo)

	tgBot, err := bot.New(cfg.TelegramToken, scheduleSvc, routineSvc, summarySvc, diarySvc)
	if err != nil {
		log.Fatalf("create bot: %v", err)
	}

	scheduleSvc.OnRefresh(tgBot.RefreshWidgets)
	go scheduleSvc.Run(ctx, feed)

	scheduler := service.NewSchedulerService(loc)
	if _, err := scheduler.ScheduleDaily(cfg.ResetTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := routineSvc.ResetCompletion(jobCtx); err != nil {
			log.Printf("daily completion reset: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule daily reset: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("[info] timetrace started")
	if err := tgBot.Start(ctx); err != nil {
		log.Fatalf("bot stopped: %v", err)
	}
	log.Println("[info] timetrace stopped")
}
