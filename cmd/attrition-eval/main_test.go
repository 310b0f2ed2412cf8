package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/okian/attrition/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// TestMain loads .env if available
func TestMain(m *testing.M) {
	_ = godotenv.Load()
	os.Exit(m.Run())
}

// classifier answers Yes only for employees aged 21.
func classifier(t *testing.T) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec map[string]float64
		_ = json.NewDecoder(r.Body).Decode(&rec)
		w.Header().Set("Content-Type", "application/json")
		if rec[model.FeatureAge] == 21 {
			_, _ = w.Write([]byte(`{"Attrition":"Yes"}`))
			return
		}
		_, _ = w.Write([]byte(`{"Attrition":"No"}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// writeDataset writes ages 21..24 labelled Yes, Yes, No, No. A label of
// "bad" replaces the row's age with a non-number.
func writeDataset(t *testing.T, labels ...string) string {
	if len(labels) == 0 {
		labels = []string{"Yes", "Yes", "No", "No"}
	}
	var b strings.Builder
	b.WriteString(strings.Join(model.Features, ",") + "," + model.LabelColumn + "\n")
	for i, label := range labels {
		rec := model.DefaultRecord()
		rec.Set(model.FeatureAge, float64(21+i))
		fields := make([]string, 0, len(model.Features)+1)
		for _, f := range model.Features {
			v, _ := rec.Get(f)
			if f == model.FeatureAge && label == "bad" {
				fields = append(fields, "unknown")
				continue
			}
			fields = append(fields, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if label == "bad" {
			label = "No"
		}
		b.WriteString(strings.Join(append(fields, label), ",") + "\n")
	}
	path := filepath.Join(t.TempDir(), "employees.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEvaluateCommand(t *testing.T) {
	Convey("Given a classifier and a labelled dataset", t, func() {
		url := classifier(t)
		path := writeDataset(t)

		Convey("When the dataset is evaluated", func() {
			out, err := execute("evaluate", "--url", url, "--file", path, "--workers", "2")

			Convey("Then the four metrics are printed to two decimals", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "rows:      4 (scored 4, skipped 0)")
				So(out, ShouldContainSubstring, "accuracy:  0.75")
				So(out, ShouldContainSubstring, "precision: 1.00")
				So(out, ShouldContainSubstring, "recall:    0.50")
				So(out, ShouldContainSubstring, "f1:        0.67")
			})
		})

		Convey("When JSON output is requested", func() {
			out, err := execute("evaluate", "--url", url, "--file", path, "--json")

			Convey("Then the report decodes", func() {
				So(err, ShouldBeNil)
				var report struct {
					Source string `json:"source"`
					Scored int    `json:"scored"`
				}
				So(json.Unmarshal([]byte(out), &report), ShouldBeNil)
				So(report.Source, ShouldEqual, model.SourceCLI)
				So(report.Scored, ShouldEqual, 4)
			})
		})

		Convey("When the file flag is missing", func() {
			_, err := execute("evaluate", "--url", url)

			Convey("Then cobra rejects the call", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, `required flag(s) "file" not set`)
			})
		})

		Convey("When the policy is unknown", func() {
			_, err := execute("evaluate", "--url", url, "--file", path, "--policy", "retry")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unknown failure policy")
		})
	})

	Convey("Given a dataset with an unparseable row", t, func() {
		url := classifier(t)
		path := writeDataset(t, "Yes", "bad", "No", "No")

		Convey("When the abort policy applies", func() {
			_, err := execute("evaluate", "--url", url, "--file", path, "--policy", "abort")

			Convey("Then the run fails naming the line", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "line 3")
			})
		})

		Convey("When the skip policy applies", func() {
			out, err := execute("evaluate", "--url", url, "--file", path, "--policy", "skip", "--verbose")

			Convey("Then the remaining rows are scored and the failure listed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "scored 3, skipped 1")
				So(out, ShouldContainSubstring, "line 3:")
				So(out, ShouldContainSubstring, "confusion: tp=1 fp=0 tn=2 fn=0")
			})
		})
	})
}

func TestHistoryCommand(t *testing.T) {
	Convey("Given evaluations recorded in a SQLite history", t, func() {
		url := classifier(t)
		dsn := "sqlite://" + filepath.Join(t.TempDir(), "history.db")
		_, err := execute("evaluate", "--url", url, "--file", writeDataset(t), "--history", dsn)
		So(err, ShouldBeNil)

		Convey("When history is listed", func() {
			out, err := execute("history", "--url", url, "--history", dsn)

			Convey("Then the CLI run appears", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "SOURCE")
				So(out, ShouldContainSubstring, "cli")
				So(out, ShouldContainSubstring, "0.75")
			})
		})
	})
}

func TestPredictCommand(t *testing.T) {
	Convey("Given a classifier", t, func() {
		url := classifier(t)

		Convey("When a 21 year old is predicted", func() {
			out, err := execute("predict", "--url", url, "--set", "Age=21")

			Convey("Then the high risk advice is printed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, model.RiskHigh)
				So(out, ShouldContainSubstring, "  - Review salary and benefits")
			})
		})

		Convey("When a category label is selected", func() {
			out, err := execute("predict", "--url", url, "--skin", "dashboard", "--select", "JobLevel=Senior", "--json")

			Convey("Then the record carries the encoded level", func() {
				So(err, ShouldBeNil)
				var got struct {
					Outcome string             `json:"outcome"`
					Record  map[string]float64 `json:"record"`
				}
				So(json.Unmarshal([]byte(out), &got), ShouldBeNil)
				So(got.Outcome, ShouldEqual, "No")
				So(got.Record[model.FeatureJobLevel], ShouldEqual, 4)
			})
		})

		Convey("When a feature is unknown", func() {
			_, err := execute("predict", "--url", url, "--set", "ShoeSize=9")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "ShoeSize")
		})

		Convey("When a value is out of range", func() {
			_, err := execute("predict", "--url", url, "--set", "Age=7")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "Age")
		})
	})
}

func TestEncodeCommand(t *testing.T) {
	Convey("Given the built-in skins", t, func() {
		Convey("When labels are encoded", func() {
			out, err := execute("encode", "--url", "simulate", "--select", "Education=Bachelor", "--select", "WorkLifeBalance=Excellent")

			Convey("Then codes are printed in field order", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "Education=3\nWorkLifeBalance=4\n")
			})
		})

		Convey("When a label is unknown", func() {
			_, err := execute("encode", "--url", "simulate", "--select", "Education=PhD")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "PhD")
		})

		Convey("When nothing is selected", func() {
			_, err := execute("encode", "--url", "simulate")
			So(err, ShouldNotBeNil)
		})

		Convey("When skins are listed", func() {
			out, err := execute("skins", "--url", "simulate")

			Convey("Then every built-in skin and the default are shown", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "dashboard (default)")
				So(out, ShouldContainSubstring, "classic:")
				So(out, ShouldContainSubstring, "corporate:")
			})
		})
	})
}
