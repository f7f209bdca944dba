// Package metrics publishes prediction and accuracy metrics to CloudWatch.
// Publishing is best effort: failures are logged and never returned, so a
// metrics outage cannot fail an analysis run.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"katabatic/internal/types"
)

// DefaultNamespace is the CloudWatch namespace when none is configured.
const DefaultNamespace = "Katabatic"

// Metric names.
const (
	MetricPredictionProbability = "PredictionProbability"
	MetricFactorsMet            = "FactorsMet"
	MetricRecommendation        = "Recommendation"
	MetricAccuracy              = "PredictionAccuracy"
	MetricOutcomeWindSpeed      = "OutcomeWindSpeed"
	MetricRunDuration           = "RunDuration"
)

// Dimension names.
const (
	DimSite           = "Site"
	DimRecommendation = "Value"
	DimJob            = "Job"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher emits katabatic metrics.
type Publisher struct {
	client    CloudWatchClient
	namespace string
	site      string
	logger    *slog.Logger
}

// NewPublisher creates a Publisher. site becomes the Site dimension on
// prediction metrics.
func NewPublisher(client CloudWatchClient, namespace, site string, logger *slog.Logger) *Publisher {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, namespace: namespace, site: site, logger: logger}
}

// RecordPrediction emits the probability, the number of factors met, and a
// count for the recommendation value.
func (p *Publisher) RecordPrediction(ctx context.Context, pred types.Prediction) {
	site := p.siteDim()
	p.put(ctx, "prediction",
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricPredictionProbability),
			Value:      aws.Float64(float64(pred.Probability)),
			Unit:       cwtypes.StandardUnitPercent,
			Dimensions: []cwtypes.Dimension{site},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricFactorsMet),
			Value:      aws.Float64(float64(pred.Factors.MetCount())),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{site},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricRecommendation),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				site,
				{Name: aws.String(DimRecommendation), Value: aws.String(string(pred.Recommendation))},
			},
		},
	)
}

// RecordAccuracy emits the overall accuracy percentage and the observed wind
// speed of the latest outcome.
func (p *Publisher) RecordAccuracy(ctx context.Context, accuracy float64, outcome types.Outcome) {
	site := p.siteDim()
	p.put(ctx, "accuracy",
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAccuracy),
			Value:      aws.Float64(accuracy),
			Unit:       cwtypes.StandardUnitPercent,
			Dimensions: []cwtypes.Dimension{site},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricOutcomeWindSpeed),
			Value:      aws.Float64(outcome.ActualWindSpeed),
			Unit:       cwtypes.StandardUnitNone,
			Dimensions: []cwtypes.Dimension{site},
		},
	)
}

// RecordRunDuration emits how long a scheduled job took.
func (p *Publisher) RecordRunDuration(ctx context.Context, job string, d time.Duration) {
	p.put(ctx, "run_duration", cwtypes.MetricDatum{
		MetricName: aws.String(MetricRunDuration),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{{Name: aws.String(DimJob), Value: aws.String(job)}},
	})
}

func (p *Publisher) siteDim() cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(DimSite), Value: aws.String(p.site)}
}

func (p *Publisher) put(ctx context.Context, kind string, data ...cwtypes.MetricDatum) {
	if p == nil || p.client == nil {
		return
	}
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish metrics",
			"kind", kind,
			"error", err,
		)
	}
}
