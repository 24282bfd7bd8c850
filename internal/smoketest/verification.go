package smoketest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/okian/turnover/internal/domain/prediction"
	"github.com/okian/turnover/pkg/logger"
)

// ErrVerification is returned when the service answered something that is
// not a well-formed prediction.
var ErrVerification = errors.New("verification failed")

// verifyResults checks every successful response for internal consistency.
func verifyResults(ctx context.Context, results []Result, stats *Stats) error {
	logger.Get().Info(ctx, "verifying predictions", logger.Int("count", len(results)))

	var problems []string
	for i, r := range results {
		if r.Response == nil {
			continue
		}
		if err := checkResponse(r.Response); err != nil {
			problems = append(problems, fmt.Sprintf("#%d %s", i, err))
			continue
		}
		if r.Response.Label == string(prediction.Leave) {
			stats.Leave++
		} else {
			stats.Stay++
		}
	}
	stats.Violations += len(problems)
	return report(ctx, "prediction", problems)
}

func checkResponse(r *Response) error {
	label := prediction.Label(r.Label)
	switch label {
	case prediction.Stay, prediction.Leave:
	default:
		return fmt.Errorf("unknown label %q", r.Label)
	}
	if label.Class() != r.Class {
		return fmt.Errorf("class %d does not match label %s", r.Class, r.Label)
	}
	p := r.Probabilities
	if p.Stay < 0 || p.Leave < 0 || math.Abs(p.Stay+p.Leave-1) > probabilityTolerance {
		return fmt.Errorf("probabilities %v/%v do not form a distribution", p.Stay, p.Leave)
	}
	winner := prediction.Stay
	if p.Leave > p.Stay {
		winner = prediction.Leave
	}
	if winner != label {
		return fmt.Errorf("label %s disagrees with probabilities %v/%v", r.Label, p.Stay, p.Leave)
	}
	if r.Display.Stay != prediction.Percent(p.Stay) || r.Display.Leave != prediction.Percent(p.Leave) {
		return fmt.Errorf("display %s/%s does not match probabilities", r.Display.Stay, r.Display.Leave)
	}
	return nil
}

// verifyDeterminism re-scores the first n successful requests and expects
// identical answers.
func verifyDeterminism(ctx context.Context, cfg *Config, results []Result, stats *Stats) error {
	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/predict"

	var problems []string
	for i, r := range results {
		if stats.Repeated >= cfg.Repeat {
			break
		}
		if r.Response == nil {
			continue
		}
		again := submitSingle(ctx, client, url, r.Request)
		stats.Repeated++
		if again.Response == nil {
			problems = append(problems, fmt.Sprintf("#%d repeat failed: status %d %s", i, again.Status, again.Error))
			continue
		}
		if again.Response.Label != r.Response.Label || again.Response.Probabilities != r.Response.Probabilities {
			problems = append(problems, fmt.Sprintf("#%d repeat answered %s %v, first %s %v",
				i, again.Response.Label, again.Response.Probabilities, r.Response.Label, r.Response.Probabilities))
		}
	}
	stats.Violations += len(problems)
	logger.Get().Info(ctx, "determinism checked", logger.Int("repeated", stats.Repeated))
	return report(ctx, "determinism", problems)
}

// invalidBodies must all be refused with 400.
var invalidBodies = []string{
	`{"satisfaction_level":0.5}`,
	`{"satisfaction_level":1.5,"time_spend_company":3,"average_monthly_hours":200,"number_project":4,"last_evaluation":0.7}`,
	`{"satisfaction_level":0.5,"time_spend_company":3,"average_monthly_hours":200,"number_project":4,"last_evaluation":0.7,"salary":"low"}`,
	`not json`,
	`{"satisfaction_level":0.5,"time_spend_company":3,"average_monthly_hours":200,"number_project":4,"last_evaluation":0.7} {}`,
}

// verifyValidation checks that malformed input is rejected.
func verifyValidation(ctx context.Context, cfg *Config, stats *Stats) error {
	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/predict"

	var problems []string
	for _, body := range invalidBodies {
		resp, err := client.PostRaw(ctx, url, []byte(body))
		if err != nil {
			return fmt.Errorf("post invalid body: %w", err)
		}
		_, _ = readResponseBody(resp)
		if resp.StatusCode != http.StatusBadRequest {
			problems = append(problems, fmt.Sprintf("body %q answered %d", body, resp.StatusCode))
		}
	}
	stats.Violations += len(problems)
	return report(ctx, "validation", problems)
}

func report(ctx context.Context, check string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	for _, p := range problems {
		logger.Get().Error(ctx, "check failed", logger.String("check", check), logger.String("detail", p))
	}
	return fmt.Errorf("%w: %s: %d problem(s), first: %s", ErrVerification, check, len(problems), strings.TrimSpace(problems[0]))
}
