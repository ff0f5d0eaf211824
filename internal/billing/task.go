package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/warebill/billing/internal/common"
)

// TaskGenerateReport is the asynq task type for asynchronous report runs.
const TaskGenerateReport = "billing:generate_report"

func reportResultKey(reportID string) string {
	return "billing:report:" + reportID
}

// NewGenerateReportTask builds the asynq task for a report request.
func NewGenerateReportTask(req Request) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal report request: %w", err)
	}
	return asynq.NewTask(TaskGenerateReport, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

// TaskHandler runs report generation tasks and parks the finished report in
// Redis for pickup. Validation failures are permanent; they skip asynq's
// retry machinery.
type TaskHandler struct {
	Gen       *Generator
	R         *redis.Client
	ResultTTL time.Duration
	Log       *zerolog.Logger
}

func (h *TaskHandler) logger() *zerolog.Logger {
	if h != nil && h.Log != nil {
		return h.Log
	}
	nop := zerolog.Nop()
	return &nop
}

// ProcessTask implements asynq.Handler.
func (h *TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var req Request
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return fmt.Errorf("decode report request: %v: %w", err, asynq.SkipRetry)
	}

	report, err := h.Gen.Generate(ctx, req)
	if err != nil {
		if common.IsAppError(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if h.R != nil {
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal report: %v: %w", err, asynq.SkipRetry)
		}
		ttl := h.ResultTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		if err := h.R.Set(ctx, reportResultKey(report.ID.String()), data, ttl).Err(); err != nil {
			return fmt.Errorf("store report result: %w", err)
		}
	}
	h.logger().Info().Stringer("report_id", report.ID).Msg("report task finished")
	return nil
}

// FetchReport loads a stored report by ID. A missing report is (nil, nil).
func FetchReport(ctx context.Context, r *redis.Client, reportID string) (*Report, error) {
	data, err := r.Get(ctx, reportResultKey(reportID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode stored report: %w", err)
	}
	return &report, nil
}
