package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/websaleshq/xero-reconciler/internal/auditlog"
	"github.com/websaleshq/xero-reconciler/internal/aws"
	"github.com/websaleshq/xero-reconciler/internal/completion"
	"github.com/websaleshq/xero-reconciler/internal/config"
	"github.com/websaleshq/xero-reconciler/internal/credentials"
	"github.com/websaleshq/xero-reconciler/internal/handlers"
	"github.com/websaleshq/xero-reconciler/internal/logger"
	"github.com/websaleshq/xero-reconciler/internal/orders"
	"github.com/websaleshq/xero-reconciler/internal/reconcile"
	"github.com/websaleshq/xero-reconciler/internal/xero"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWS.Region)
	if err != nil {
		logg.Fatalw("failed to init aws clients", "error", err)
	}

	credStore := credentials.NewStore(clients.DynamoDB, cfg.AWS.CredentialsTable)
	orderStore := orders.NewStore(clients.DynamoDB, cfg.AWS.OrdersTable, cfg.AWS.InvoiceIDIndex)
	audit := auditlog.NewRing(auditlog.DefaultCapacity)

	endpoints := xero.DefaultEndpoints()
	tokens := xero.NewTokenManager(credStore, cfg.Xero.ClientID, cfg.Xero.ClientSecret, cfg.Xero.SigningKey, endpoints, logg)
	invoices := xero.NewInvoiceClient(tokens, endpoints, logg)

	processor := completion.NewProcessor(orderStore, audit, logg)
	metrics := aws.NewMetrics(clients.CloudWatch)
	engine := reconcile.NewEngine(orderStore, invoices, processor, audit, metrics, logg,
		time.Duration(cfg.Reconcile.LookbackDays)*24*time.Hour)

	var publisher *aws.Publisher
	if cfg.AWS.TriggerQueueURL != "" {
		publisher = aws.NewPublisher(clients.SQS, cfg.AWS.TriggerQueueURL)
	}

	handlerCfg := handlers.HandlerConfig{
		Resolver:    orderStore,
		Processor:   processor,
		Engine:      engine,
		Authorizer:  tokens,
		Publisher:   publisher,
		Audit:       audit,
		SigningKey:  cfg.Xero.SigningKey,
		RedirectURI: cfg.Xero.RedirectURI,
		SettingsURL: cfg.Server.SettingsURL,
		Logger:      logg,
	}

	r := setupRouter(handlerCfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		logg.Infow("running local server", "address", cfg.Server.Address)
		if err := r.Run(cfg.Server.Address); err != nil {
			logg.Fatalw("failed to run local server", "error", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
