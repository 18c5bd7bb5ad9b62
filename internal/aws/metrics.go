package aws

import (
	"context"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/cockroachdb/errors"
)

const metricsNamespace = "XeroSync/Reconcile"

// Metrics publishes reconciliation run counters to CloudWatch.
type Metrics struct {
	CW        CloudWatchAPI
	Namespace string
	nowFunc   func() time.Time
}

// NewMetrics returns a Metrics publisher using the default namespace.
func NewMetrics(cw CloudWatchAPI) *Metrics {
	return &Metrics{
		CW:        cw,
		Namespace: metricsNamespace,
		nowFunc:   time.Now,
	}
}

// PutReconcileRun emits the per-run counters: orders scanned, orders
// completed, and failed invoice lookups.
func (m *Metrics) PutReconcileRun(ctx context.Context, scanned, completed, failures int) error {
	now := m.nowFunc()

	datum := func(name string, value int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: sdkaws.String(name),
			Timestamp:  sdkaws.Time(now),
			Unit:       cwtypes.StandardUnitCount,
			Value:      sdkaws.Float64(float64(value)),
		}
	}

	_, err := m.CW.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(m.Namespace),
		MetricData: []cwtypes.MetricDatum{
			datum("OrdersScanned", scanned),
			datum("OrdersCompleted", completed),
			datum("LookupFailures", failures),
		},
	})
	if err != nil {
		return errors.Wrap(err, "put metric data")
	}
	return nil
}
