package main

import (
	"ShopTalk/bot"
	"ShopTalk/internal/broker/kafka"
	"ShopTalk/internal/cache"
	"ShopTalk/internal/config"
	repository "ShopTalk/internal/database"
	"ShopTalk/internal/http-server/api"
	"ShopTalk/internal/lib/logger"
	"ShopTalk/internal/lib/sl"
	"ShopTalk/internal/registry"
	"ShopTalk/internal/service/assist"
	"ShopTalk/internal/service/chat"
	"ShopTalk/internal/ws"
	"flag"
	"log/slog"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	// Initialize Telegram bot if enabled
	if conf.Telegram.Enabled {
		tgBot, err := bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", slog.String("error", err.Error()))
		} else {
			// Route error-level log records to the admin chat
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelError)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")
		}
	}

	lg.Info("starting shoptalk", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("mongo client")
		return
	}
	if db == nil {
		lg.Error("mongo is required: the chat log has no other durable store")
		return
	}
	lg.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("port", conf.Mongo.Port),
		slog.String("user", conf.Mongo.User),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")

	if err := db.EnsureChatIndexes(); err != nil {
		lg.With(
			sl.Err(err),
		).Error("ensure chat indexes")
	}

	reg := registry.New()
	hub := ws.NewHub(lg)

	handler := chat.New(conf, lg, db, reg, hub)

	presence, err := cache.NewPresence(conf, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("redis presence cache")
	}
	if presence != nil {
		handler.SetPresence(presence)
		lg.With(
			slog.String("addr", conf.Redis.Addr),
		).Info("presence cache initialized")
	}

	producer, err := kafka.NewProducer(conf, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("kafka producer")
	}
	if producer != nil {
		handler.SetEvents(producer)
		lg.With(
			slog.String("topic", conf.Kafka.Topic),
		).Info("kafka producer initialized")
	}

	assistant := assist.New(conf, db, lg)
	if assistant != nil {
		handler.SetAssist(assistant)
		lg.With(
			sl.Secret("openai_key", conf.OpenAI.ApiKey),
			slog.String("model", conf.OpenAI.Model),
		).Info("assistant initialized")
	}

	handler.Init()

	// *** blocking start with http server ***
	err = api.New(conf, lg, handler)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Error("service stopped")
}
