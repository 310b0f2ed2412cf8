package predictor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/attrition/internal/adapters/predictor"
	"github.com/okian/attrition/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func stub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientPredict(t *testing.T) {
	Convey("Given a classifier that answers No", t, func() {
		var got map[string]float64
		srv := stub(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Attrition":"No"}`))
		})
		client := predictor.New(srv.URL)

		Convey("When a record is submitted", func() {
			rec := model.DefaultRecord()
			rec.JobLevel = 3
			out, err := client.Predict(context.Background(), rec)

			Convey("Then the outcome is returned and all fifteen features were sent", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, model.OutcomeNo)
				So(len(got), ShouldEqual, len(model.Features))
				So(got["JobLevel"], ShouldEqual, 3)
				So(got["MonthlyIncome"], ShouldEqual, 5000)
			})
		})
	})

	Convey("Given failing classifiers", t, func() {
		cases := []struct {
			name    string
			handler http.HandlerFunc
			kind    string
			status  int
		}{
			{"server error", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}, predictor.KindStatus, http.StatusInternalServerError},
			{"non-JSON body", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			}, predictor.KindMalformed, http.StatusOK},
			{"missing field", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"prediction":"No"}`))
			}, predictor.KindMalformed, http.StatusOK},
			{"unknown label", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"Attrition":"Maybe"}`))
			}, predictor.KindMalformed, http.StatusOK},
		}

		for _, tc := range cases {
			tc := tc
			Convey("When the classifier returns a "+tc.name, func() {
				srv := stub(t, tc.handler)
				_, err := predictor.New(srv.URL).Predict(context.Background(), model.DefaultRecord())

				Convey("Then a PredictionRequestError of kind "+tc.kind+" is returned", func() {
					var pe *predictor.PredictionRequestError
					So(errors.As(err, &pe), ShouldBeTrue)
					So(pe.Kind, ShouldEqual, tc.kind)
					So(pe.Status, ShouldEqual, tc.status)
					So(errors.Is(err, predictor.ErrPredictionRequest), ShouldBeTrue)
				})
			})
		}

		Convey("When the classifier is slower than the timeout", func() {
			release := make(chan struct{})
			srv := stub(t, func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			})
			defer close(release)
			client := predictor.New(srv.URL, predictor.WithTimeout(50*time.Millisecond))
			_, err := client.Predict(context.Background(), model.DefaultRecord())

			Convey("Then the failure is a timeout", func() {
				var pe *predictor.PredictionRequestError
				So(errors.As(err, &pe), ShouldBeTrue)
				So(pe.Kind, ShouldEqual, predictor.KindTimeout)
			})
		})

		Convey("When nothing listens at the URL", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			url := srv.URL
			srv.Close()
			_, err := predictor.New(url).Predict(context.Background(), model.DefaultRecord())

			Convey("Then the failure is a network error", func() {
				var pe *predictor.PredictionRequestError
				So(errors.As(err, &pe), ShouldBeTrue)
				So(pe.Kind, ShouldEqual, predictor.KindNetwork)
			})
		})
	})
}

func TestSimulated(t *testing.T) {
	Convey("Given a simulated classifier without latency", t, func() {
		sim := predictor.NewSimulated(predictor.WithLatencyRange(0, 0))

		Convey("A dissatisfied low earner is predicted to leave", func() {
			out, err := sim.Predict(context.Background(), model.DefaultRecord())
			So(err, ShouldBeNil)
			So(out, ShouldEqual, model.OutcomeYes)
		})

		Convey("A satisfied well paid employee is predicted to stay", func() {
			rec := model.DefaultRecord()
			rec.JobSatisfaction = 4
			rec.EnvironmentSatisfaction = 4
			rec.WorkLifeBalance = 4
			rec.JobInvolvement = 4
			rec.MonthlyIncome = 20000
			So(predictor.RiskScore(rec), ShouldBeLessThan, 0.5)
			out, err := sim.Predict(context.Background(), rec)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, model.OutcomeNo)
		})

		Convey("A canceled context is a prediction error", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := sim.Predict(ctx, model.DefaultRecord())
			So(errors.Is(err, predictor.ErrPredictionRequest), ShouldBeTrue)
		})
	})

	Convey("Given a simulated classifier with latency", t, func() {
		sim := predictor.NewSimulated(predictor.WithLatencyRange(time.Second, 2*time.Second), predictor.WithSeed(1))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := sim.Predict(ctx, model.DefaultRecord())

		Convey("The deadline cuts the wait short", func() {
			var pe *predictor.PredictionRequestError
			So(errors.As(err, &pe), ShouldBeTrue)
			So(pe.Kind, ShouldEqual, predictor.KindTimeout)
		})
	})

	Convey("Risk scores stay within [0,1]", t, func() {
		rec := model.DefaultRecord()
		rec.DistanceFromHome = 500
		So(predictor.RiskScore(rec), ShouldBeBetweenOrEqual, 0, 1)
	})
}
