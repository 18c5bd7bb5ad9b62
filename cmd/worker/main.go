package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/websaleshq/xero-reconciler/internal/auditlog"
	"github.com/websaleshq/xero-reconciler/internal/aws"
	"github.com/websaleshq/xero-reconciler/internal/completion"
	"github.com/websaleshq/xero-reconciler/internal/config"
	"github.com/websaleshq/xero-reconciler/internal/credentials"
	"github.com/websaleshq/xero-reconciler/internal/logger"
	"github.com/websaleshq/xero-reconciler/internal/orders"
	"github.com/websaleshq/xero-reconciler/internal/reconcile"
	"github.com/websaleshq/xero-reconciler/internal/xero"
)

func buildProcessor(ctx context.Context) (*Processor, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	logg, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	clients, err := aws.NewAWSClients(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, err
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

	return NewProcessor(engine, logg), nil
}

func main() {
	ctx := context.Background()

	p, err := buildProcessor(ctx)
	if err != nil {
		log.Fatalf("failed to build worker: %v", err)
	}

	// If RUN_LOCAL=true, simulate a single trigger event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"trigger":"manual","requested_by":"local"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := p.Handle(ctx, event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}
