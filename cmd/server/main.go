package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mkorlev/packshop/internal/adminauth"
	"github.com/mkorlev/packshop/internal/app"
	"github.com/mkorlev/packshop/internal/app/handlers"
	"github.com/mkorlev/packshop/internal/config"
	"github.com/mkorlev/packshop/internal/lib/logger"
	"github.com/mkorlev/packshop/internal/lib/logger/handlers/urllog"
	"github.com/mkorlev/packshop/internal/lib/metrics"
	"github.com/mkorlev/packshop/internal/service"
	"github.com/mkorlev/packshop/internal/storage"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// денежные суммы в JSON отдаем числами, а не строками
	decimal.MarshalJSONWithoutQuotes = true

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// реализация слоев по работе с БД по каждому направлению
	categoryRepo := storage.NewCategoryRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	notifier := service.NewTelegramNotifier(application.Logger,
		cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, cfg.Telegram.AdminIDs)

	catalogService := service.NewCatalogService(application.Logger, categoryRepo, productRepo)
	productService := service.NewProductService(application.Logger, productRepo)
	cartService := service.NewCartService(application.Logger, productRepo)
	orderService := service.NewOrderService(application.Logger, application.DB,
		productRepo, orderRepo, cartService, notifier)

	// публичные эндпоинты витрины
	router.Get("/api/categories", handlers.CategoriesHandler(application.Logger, catalogService))
	router.Get("/api/categories/{id}", handlers.CategoryHandler(application.Logger, catalogService))
	router.Get("/api/products", handlers.ProductsHandler(application.Logger, productService))
	router.Get("/api/products/{id}", handlers.ProductHandler(application.Logger, productService))
	router.Post("/api/cart/validate", handlers.ValidateCartHandler(application.Logger, cartService))
	router.Post("/api/orders", handlers.CreateOrderHandler(application.Logger, orderService))
	router.Get("/api/orders/me", handlers.MyOrdersHandler(application.Logger, orderService))
	router.Get("/api/orders/{id}", handlers.OrderHandler(application.Logger, orderService))
	router.Post("/api/admin/check", handlers.AdminCheckHandler(application.Logger, cfg.Telegram.AdminIDs))
	// прокси изображений из Telegram
	router.Get("/api/images/{file_id}", handlers.ImageProxyHandler(application.Logger,
		cfg.Telegram.APIEndpoint, cfg.Telegram.BotToken))

	// эндпоинты админки — только для Telegram ID из списка
	router.Group(func(r chi.Router) {
		r.Use(adminauth.Middleware(application.Logger, cfg.Telegram.AdminIDs))
		r.Get("/api/orders", handlers.OrdersHandler(application.Logger, orderService))
		r.Put("/api/orders/{id}/status", handlers.OrderStatusHandler(application.Logger, orderService))
		r.Post("/api/categories", handlers.CreateCategoryHandler(application.Logger, catalogService))
		r.Put("/api/categories/{id}", handlers.UpdateCategoryHandler(application.Logger, catalogService))
		r.Delete("/api/categories/{id}", handlers.DeleteCategoryHandler(application.Logger, catalogService))
		r.Post("/api/categories/{id}/subcategories", handlers.CreateSubcategoryHandler(application.Logger, catalogService))
		r.Put("/api/subcategories/{id}", handlers.UpdateSubcategoryHandler(application.Logger, catalogService))
		r.Delete("/api/subcategories/{id}", handlers.DeleteSubcategoryHandler(application.Logger, catalogService))
		r.Post("/api/products", handlers.CreateProductHandler(application.Logger, productService))
		r.Put("/api/products/{id}", handlers.UpdateProductHandler(application.Logger, productService))
		r.Delete("/api/products/{id}", handlers.DeleteProductHandler(application.Logger, productService))
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	router.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
