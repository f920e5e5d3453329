// Основной пакет приложения AIMail. Отвечает за запуск сервиса композера,
// инициализацию базы данных, миграцию моделей и запуск HTTP-сервера.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/config"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/dao"
	"github.com/aisa-it/aimail/aimail.go/internal/aimail/gormlogger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var version string = "DEV"

var models = []any{&dao.Draft{}, &dao.FileAsset{}}

// Пример запуска: go run main.go --noMigration --trace
func main() {
	noTranslateFlag := flag.Bool("noTranslate", false, "Turn off BD errors translate")
	paramQueries := flag.Bool("paramQueries", true, "Mask queries params in log")
	noMigration := flag.Bool("noMigration", false, "Turn off DB migration")
	trace := flag.Bool("trace", false, "Verbose logs and sql trace")
	flag.Parse()

	PrintBanner()

	cfg := config.ReadConfig()
	dao.Config = cfg

	if *trace {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	// Set prod log format
	if version != "DEV" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})))
	}

	slog.Info("AIMail start.")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DatabaseDSN,
		PreferSimpleProtocol: false, // disables implicit prepared statement usage
	}), &gorm.Config{
		TranslateError: !*noTranslateFlag,
		Logger:         gormlogger.NewGormLogger(slog.Default(), time.Second*4, *paramQueries),
	})
	if err != nil {
		slog.Error("Fail init DB connection", "err", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Fail set settings to conn pool", "err", err)
		os.Exit(1)
	}
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(time.Minute * 15)

	if !*noMigration {
		slog.Info("Migrate models")
		if err := db.AutoMigrate(models...); err != nil {
			slog.Error("Fail migrate models", "err", err)
			os.Exit(1)
		}
	}

	aimail.Server(db, cfg, version)
}

// PrintBanner выводит заголовок приложения с версией и ссылкой на сайт.
func PrintBanner() {
	banner := `
          _____ __  __       _ _
    /\   |_   _|  \/  |     (_) |
   /  \    | | | \  / | __ _ _| |
  / /\ \   | | | |\/| |/ _  | | |
 / ____ \ _| |_| |  | | (_| | | |
/_/    \_\_____|_|  |_|\__,_|_|_| %s
Email composer editing engine
%s
----------------------------------------------------
`
	colorReset := "\033[0m"

	colorYellow := "\033[33m"
	colorBlue := "\033[34m"

	formattedVersion := version
	if version == "DEV" {
		formattedVersion = colorYellow + version + colorReset
	}

	fmt.Printf(banner, formattedVersion, colorBlue+"https://aisa.ru"+colorReset)
}
