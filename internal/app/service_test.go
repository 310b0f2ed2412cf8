package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/attrition/internal/adapters/dataset"
	"github.com/okian/attrition/internal/adapters/repository"
	service "github.com/okian/attrition/internal/app"
	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// stubPredictor answers by Age so tests can script each row.
type stubPredictor struct {
	mu       sync.Mutex
	calls    int
	outcomes map[float64]model.Outcome
	errs     map[float64]error
	delays   map[float64]time.Duration
	entered  map[float64]chan struct{}
	waits    map[float64]chan struct{}
	block    chan struct{}
}

func (p *stubPredictor) Predict(ctx context.Context, r model.EmployeeRecord) (model.Outcome, error) {
	p.mu.Lock()
	p.calls++
	out, ok := p.outcomes[r.Age]
	err := p.errs[r.Age]
	delay := p.delays[r.Age]
	entered := p.entered[r.Age]
	wait := p.waits[r.Age]
	block := p.block
	p.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if wait != nil {
		<-wait
	}
	// a slow classifier answers late even after the caller gives up
	time.Sleep(delay)

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return model.OutcomeNo, nil
	}
	return out, nil
}

func (p *stubPredictor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type csvRow struct {
	age   string
	label string
}

// buildCSV writes a dataset of default records with the given ages and labels.
func buildCSV(rows ...csvRow) string {
	var b strings.Builder
	b.WriteString(strings.Join(model.Features, ","))
	b.WriteString("," + model.LabelColumn + "\n")
	def := model.DefaultRecord()
	for _, row := range rows {
		fields := make([]string, 0, len(model.Features)+1)
		for _, f := range model.Features {
			if f == model.FeatureAge {
				fields = append(fields, row.age)
				continue
			}
			v, _ := def.Get(f)
			fields = append(fields, strconv.FormatFloat(v, 'f', -1, 64))
		}
		fields = append(fields, row.label)
		b.WriteString(strings.Join(fields, ",") + "\n")
	}
	return b.String()
}

func startService(p *stubPredictor, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithPredictor(p),
		service.WithWorkerCount(4),
		service.WithQueueSize(8),
	}
	s := service.New(append(base, opts...)...)
	convey.So(s.Start(context.Background()), convey.ShouldBeNil)
	return s
}

func fourRowScenario() (*stubPredictor, string) {
	p := &stubPredictor{outcomes: map[float64]model.Outcome{
		21: model.OutcomeYes,
		22: model.OutcomeNo,
		23: model.OutcomeNo,
		24: model.OutcomeNo,
	}}
	csv := buildCSV(
		csvRow{"21", "Yes"},
		csvRow{"22", "Yes"},
		csvRow{"23", "No"},
		csvRow{"24", "No"},
	)
	return p, csv
}

func TestServiceLifecycle(t *testing.T) {
	convey.Convey("Given a service", t, func() {
		convey.Convey("When it is used before Start", func() {
			s := service.New(service.WithPredictor(&stubPredictor{}))
			_, err := s.Predict(context.Background(), model.DefaultRecord())

			convey.Convey("Then ErrNotStarted is returned", func() {
				convey.So(errors.Is(err, service.ErrNotStarted), convey.ShouldBeTrue)
				convey.So(s.GetStats()["started"], convey.ShouldEqual, false)
			})
		})

		convey.Convey("When no classifier is configured", func() {
			s := service.New()
			err := s.Start(context.Background())

			convey.Convey("Then Start refuses to run", func() {
				convey.So(errors.Is(err, service.ErrNoPredictor), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When started with the simulated classifier", func() {
			s := service.New(service.WithPredictURL("simulate", time.Second), service.WithWorkerCount(2))
			convey.So(s.Start(context.Background()), convey.ShouldBeNil)
			stats := s.GetStats()

			convey.Convey("Then stats describe the running service", func() {
				convey.So(stats["started"], convey.ShouldEqual, true)
				convey.So(stats["workerCount"], convey.ShouldEqual, 2)
				convey.So(stats["failurePolicy"], convey.ShouldEqual, "abort")
				convey.So(stats["historyBackend"], convey.ShouldEqual, repository.BackendMemory)
				convey.So(s.Skins().Default().Name, convey.ShouldEqual, encoding.SkinDashboard)
			})

			convey.Reset(s.Stop)
		})

		convey.Convey("When stopped twice", func() {
			s := startService(&stubPredictor{})
			s.Stop()

			convey.So(s.Stop, convey.ShouldNotPanic)
		})
	})
}

func TestPredict(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		p := &stubPredictor{outcomes: map[float64]model.Outcome{
			30: model.OutcomeNo,
			45: model.OutcomeYes,
		}}
		s := startService(p)
		ctx := context.Background()

		convey.Convey("When a retained employee is submitted", func() {
			r := model.DefaultRecord()
			r.Age = 30
			r.MonthlyIncome = 5000
			r.JobLevel = 3
			r.TotalWorkingYears = 8
			a, err := s.Predict(ctx, r)

			convey.Convey("Then the risk is low with no recommendations", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(a.Risk, convey.ShouldEqual, model.RiskLow)
				convey.So(a.Message, convey.ShouldEqual, "Employee is likely to stay.")
				convey.So(a.Recommendations, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a leaver is submitted", func() {
			r := model.DefaultRecord()
			r.Age = 45
			a, err := s.Predict(ctx, r)

			convey.Convey("Then the risk is high with five recommendations", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(a.Risk, convey.ShouldEqual, model.RiskHigh)
				convey.So(a.Recommendations, convey.ShouldHaveLength, 5)
			})
		})

		convey.Convey("When the record is out of range", func() {
			r := model.DefaultRecord()
			r.Age = 17
			_, err := s.Predict(ctx, r)

			convey.Convey("Then the classifier is never called", func() {
				convey.So(errors.Is(err, model.ErrInvalidRecord), convey.ShouldBeTrue)
				convey.So(p.callCount(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the classifier fails", func() {
			p.mu.Lock()
			p.errs = map[float64]error{30: errors.New("connection refused")}
			p.mu.Unlock()
			r := model.DefaultRecord()
			r.Age = 30
			_, err := s.Predict(ctx, r)

			convey.Convey("Then the failure is surfaced and no outcome assumed", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "connection refused")
			})
		})

		convey.Convey("When a form is submitted with labels", func() {
			skin, err := s.Skins().Get(encoding.SkinCorporate)
			convey.So(err, convey.ShouldBeNil)
			selections := make(map[string]string, len(encoding.CategoricalFields))
			for _, f := range encoding.CategoricalFields {
				t, _ := skin.Table(f)
				selections[f] = t.Labels()[0]
			}
			selections[model.FeatureJobLevel] = "Management"
			a, r, err := s.PredictForm(ctx, service.FormInput{
				Skin:       encoding.SkinCorporate,
				Numbers:    map[string]float64{model.FeatureAge: 30, model.FeatureJobLevel: 1},
				Selections: selections,
			})

			convey.Convey("Then the selection wins over the numeric value", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.JobLevel, convey.ShouldEqual, 5)
				convey.So(r.Age, convey.ShouldEqual, 30)
				convey.So(r.MonthlyIncome, convey.ShouldEqual, model.DefaultRecord().MonthlyIncome)
				convey.So(a.Risk, convey.ShouldEqual, model.RiskLow)
			})
		})

		convey.Convey("When a selection matches no label", func() {
			_, err := s.Encode(ctx, encoding.SkinDashboard, map[string]string{model.FeatureJobLevel: "Intern"})

			convey.Convey("Then the field and label are reported", func() {
				var unknown *encoding.UnknownLabelError
				convey.So(errors.As(err, &unknown), convey.ShouldBeTrue)
				convey.So(unknown.Field, convey.ShouldEqual, model.FeatureJobLevel)
				convey.So(unknown.Label, convey.ShouldEqual, "Intern")
			})
		})

		convey.Convey("When selections are encoded", func() {
			codes, err := s.Encode(ctx, encoding.SkinClassic, map[string]string{model.FeatureJobLevel: "3"})

			convey.Convey("Then each maps to its code", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(codes[model.FeatureJobLevel], convey.ShouldEqual, 3)
			})
		})

		convey.Reset(s.Stop)
	})
}

func TestEvaluate(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		ctx := context.Background()

		convey.Convey("When the four row dataset is evaluated", func() {
			p, csv := fourRowScenario()
			s := startService(p)
			defer s.Stop()
			rep, err := s.EvaluateCSV(ctx, strings.NewReader(csv))

			convey.Convey("Then the metrics match the confusion matrix", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rep.Rows, convey.ShouldEqual, 4)
				convey.So(rep.Scored, convey.ShouldEqual, 4)
				convey.So(rep.Result.Accuracy, convey.ShouldEqual, 0.75)
				convey.So(rep.Result.Precision, convey.ShouldEqual, 1.0)
				convey.So(rep.Result.Recall, convey.ShouldEqual, 0.5)
				convey.So(rep.Result.F1, convey.ShouldAlmostEqual, 2.0/3.0, 1e-9)
				convey.So(rep.Display.F1, convey.ShouldEqual, 0.67)
				convey.So(rep.Predicted, convey.ShouldResemble, []model.Outcome{"Yes", "No", "No", "No"})
				convey.So(rep.Actual, convey.ShouldResemble, []model.Outcome{"Yes", "Yes", "No", "No"})
			})

			convey.Convey("Then the run is in history", func() {
				runs, err := s.History(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(runs, convey.ShouldHaveLength, 1)
				convey.So(runs[0].ID, convey.ShouldEqual, rep.RunID)
				convey.So(runs[0].Status, convey.ShouldEqual, model.RunStatusOK)
				convey.So(runs[0].Source, convey.ShouldEqual, model.SourceUpload)
				convey.So(runs[0].TP, convey.ShouldEqual, 1)
				convey.So(runs[0].FN, convey.ShouldEqual, 1)
			})

			convey.Convey("Then the run can be fetched by id", func() {
				run, err := s.Evaluation(ctx, rep.RunID)
				convey.So(err, convey.ShouldBeNil)
				convey.So(run.ID, convey.ShouldEqual, rep.RunID)
				convey.So(run.Scored, convey.ShouldEqual, 4)

				_, err = s.Evaluation(ctx, "missing")
				convey.So(errors.Is(err, service.ErrRunNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the Attrition column is missing", func() {
			p := &stubPredictor{}
			s := startService(p)
			defer s.Stop()
			csv := strings.Join(model.Features, ",") + "\n"
			_, err := s.EvaluateCSV(ctx, strings.NewReader(csv))

			convey.Convey("Then nothing is predicted or saved", func() {
				convey.So(errors.Is(err, dataset.ErrMissingLabelColumn), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, `CSV must contain "Attrition" column`)
				convey.So(p.callCount(), convey.ShouldEqual, 0)
				runs, _ := s.History(ctx, 10)
				convey.So(runs, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a row fails under the abort policy", func() {
			p, _ := fourRowScenario()
			p.errs = map[float64]error{22: errors.New("classifier down")}
			s := startService(p)
			defer s.Stop()
			csv := buildCSV(csvRow{"21", "Yes"}, csvRow{"22", "Yes"}, csvRow{"23", "No"})
			_, err := s.EvaluateCSV(ctx, strings.NewReader(csv))

			convey.Convey("Then no metrics are returned and the run is marked aborted", func() {
				var aborted *service.BatchAbortedError
				convey.So(errors.As(err, &aborted), convey.ShouldBeTrue)
				convey.So(errors.Is(err, service.ErrBatchAborted), convey.ShouldBeTrue)
				convey.So(aborted.Line, convey.ShouldEqual, 3)
				convey.So(err.Error(), convey.ShouldContainSubstring, "classifier down")

				runs, _ := s.History(ctx, 10)
				convey.So(runs, convey.ShouldHaveLength, 1)
				convey.So(runs[0].Status, convey.ShouldEqual, model.RunStatusAborted)
				convey.So(runs[0].Accuracy, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a later row fails before an earlier one under the abort policy", func() {
			p := &stubPredictor{
				errs: map[float64]error{
					21: errors.New("first row down"),
					22: errors.New("second row down"),
				},
				delays: map[float64]time.Duration{21: 100 * time.Millisecond},
			}
			// the second row fails only once the first is with the classifier
			firstIn := make(chan struct{})
			p.entered = map[float64]chan struct{}{21: firstIn}
			p.waits = map[float64]chan struct{}{22: firstIn}
			s := startService(p, service.WithWorkerCount(2))
			defer s.Stop()
			csv := buildCSV(csvRow{"21", "Yes"}, csvRow{"22", "Yes"})
			_, err := s.EvaluateCSV(ctx, strings.NewReader(csv))

			convey.Convey("Then the earliest failing line in the file is reported", func() {
				var aborted *service.BatchAbortedError
				convey.So(errors.As(err, &aborted), convey.ShouldBeTrue)
				convey.So(aborted.Line, convey.ShouldEqual, 2)
				convey.So(err.Error(), convey.ShouldContainSubstring, "first row down")

				runs, _ := s.History(ctx, 10)
				convey.So(runs, convey.ShouldHaveLength, 1)
				convey.So(runs[0].Error, convey.ShouldContainSubstring, "line 2")
			})
		})

		convey.Convey("When an invalid row is met under the skip policy", func() {
			p, _ := fourRowScenario()
			s := startService(p, service.WithFailurePolicy(service.PolicySkip))
			defer s.Stop()
			csv := buildCSV(
				csvRow{"21", "Yes"},
				csvRow{"abc", "Yes"},
				csvRow{"22", "Yes"},
				csvRow{"23", "No"},
				csvRow{"24", "Maybe"},
				csvRow{"24", "No"},
			)
			rep, err := s.EvaluateCSV(ctx, strings.NewReader(csv))

			convey.Convey("Then the bad rows are skipped and the rest scored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rep.Rows, convey.ShouldEqual, 6)
				convey.So(rep.Scored, convey.ShouldEqual, 4)
				convey.So(rep.Skipped, convey.ShouldEqual, 2)
				convey.So(rep.Result.Accuracy, convey.ShouldEqual, 0.75)
				convey.So(rep.Failures, convey.ShouldHaveLength, 2)
				convey.So(rep.Failures[0].Line, convey.ShouldEqual, 3)
				convey.So(rep.Failures[1].Line, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When the policy is overridden per evaluation", func() {
			p, csv := fourRowScenario()
			p.errs = map[float64]error{24: errors.New("boom")}
			s := startService(p)
			defer s.Stop()
			rep, err := s.EvaluateCSV(ctx, strings.NewReader(csv),
				service.EvalPolicy(service.PolicySkip), service.EvalSource(model.SourceCLI))

			convey.Convey("Then the override applies", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rep.Policy, convey.ShouldEqual, service.PolicySkip)
				convey.So(rep.Source, convey.ShouldEqual, model.SourceCLI)
				convey.So(rep.Scored, convey.ShouldEqual, 3)
				convey.So(rep.Result.Precision, convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When every row fails under the skip policy", func() {
			p := &stubPredictor{errs: map[float64]error{21: errors.New("x"), 22: errors.New("y")}}
			s := startService(p, service.WithFailurePolicy(service.PolicySkip))
			defer s.Stop()
			csv := buildCSV(csvRow{"21", "Yes"}, csvRow{"22", "No"})
			_, err := s.EvaluateCSV(ctx, strings.NewReader(csv))

			convey.Convey("Then no metrics are produced", func() {
				convey.So(errors.Is(err, service.ErrNoScoredRows), convey.ShouldBeTrue)
				runs, _ := s.History(ctx, 10)
				convey.So(runs[0].Status, convey.ShouldEqual, model.RunStatusFailed)
			})
		})

		convey.Convey("When the caller cancels mid batch", func() {
			p := &stubPredictor{block: make(chan struct{})}
			s := startService(p)
			defer s.Stop()
			var rows []csvRow
			for i := 0; i < 20; i++ {
				rows = append(rows, csvRow{strconv.Itoa(20 + i), "No"})
			}
			cctx, cancel := context.WithCancel(ctx)
			errc := make(chan error, 1)
			go func() {
				_, err := s.EvaluateCSV(cctx, strings.NewReader(buildCSV(rows...)))
				errc <- err
			}()
			time.Sleep(20 * time.Millisecond)
			cancel()

			convey.Convey("Then the evaluation returns the context error", func() {
				select {
				case err := <-errc:
					convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				case <-time.After(2 * time.Second):
					convey.So("evaluation did not return", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When a file path is evaluated", func() {
			p, _ := fourRowScenario()
			s := startService(p)
			defer s.Stop()
			_, err := s.EvaluateFile(ctx, "testdata/does-not-exist.csv")

			convey.Convey("Then the open error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a dataset has more rows than the queue holds", func() {
			p := &stubPredictor{}
			s := startService(p)
			defer s.Stop()
			var rows []csvRow
			for i := 0; i < 50; i++ {
				rows = append(rows, csvRow{strconv.Itoa(20 + i%30), "No"})
			}
			var buf bytes.Buffer
			buf.WriteString(buildCSV(rows...))
			rep, err := s.EvaluateCSV(ctx, &buf)

			convey.Convey("Then every row is scored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rep.Scored, convey.ShouldEqual, 50)
				convey.So(rep.Result.Accuracy, convey.ShouldEqual, 1.0)
				convey.So(rep.Result.PrecisionUndefined, convey.ShouldBeTrue)
			})
		})
	})
}

func TestParseFailurePolicy(t *testing.T) {
	convey.Convey("Given policy names", t, func() {
		p, err := service.ParseFailurePolicy(" Skip ")
		convey.So(err, convey.ShouldBeNil)
		convey.So(p, convey.ShouldEqual, service.PolicySkip)

		_, err = service.ParseFailurePolicy("retry")
		convey.So(errors.Is(err, service.ErrUnknownPolicy), convey.ShouldBeTrue)
	})
}

func TestEvaluateLogFields(t *testing.T) {
	convey.Convey("Given a service logging JSON to a buffer", t, func() {
		var buf bytes.Buffer
		convey.So(logger.Init(logger.WithFormat(logger.FormatJSON), logger.WithOutput(&buf)), convey.ShouldBeNil)
		convey.Reset(func() { _ = logger.Init() })

		p, csv := fourRowScenario()
		s := startService(p)
		defer s.Stop()

		convey.Convey("When an upload is evaluated", func() {
			_, err := s.EvaluateCSV(context.Background(), strings.NewReader(csv))
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the run source does not clobber the caller", func() {
				var started map[string]any
				for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
					var entry map[string]any
					if json.Unmarshal([]byte(line), &entry) == nil && entry["msg"] == "batch evaluation started" {
						started, _ = entry["service"].(map[string]any)
					}
				}
				convey.So(started, convey.ShouldNotBeNil)
				convey.So(started["run_source"], convey.ShouldEqual, "upload")
				convey.So(started["source"], convey.ShouldContainSubstring, "evaluate.go")
			})
		})
	})
}
