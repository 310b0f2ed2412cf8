package service

import (
	"context"
	"errors"

	"github.com/okian/attrition/internal/domain/encoding"
	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/pkg/logger"
	"github.com/okian/attrition/pkg/metrics"
)

// Predict validates r, asks the classifier and returns the assessment.
// Failures are returned as is; an outcome is never assumed.
func (s *Service) Predict(ctx context.Context, r model.EmployeeRecord) (model.Assessment, error) {
	p, _, _, _, err := s.components()
	if err != nil {
		return model.Assessment{}, err
	}
	if err := r.Validate(); err != nil {
		return model.Assessment{}, err
	}

	out, err := p.Predict(ctx, r)
	if err != nil {
		s.logger.Warn(ctx, "prediction failed", logger.Error(err))
		return model.Assessment{}, err
	}

	a := model.AssessmentFor(out)
	s.logger.Debug(ctx, "prediction served",
		logger.String("outcome", out.String()),
		logger.String("risk", a.Risk),
	)
	return a, nil
}

// FormInput is one submission of the prediction form: numeric features by
// name and categorical selections by label.
type FormInput struct {
	Skin       string
	Numbers    map[string]float64
	Selections map[string]string
}

// BuildRecord turns form input into a record, starting from the defaults.
func (s *Service) BuildRecord(in FormInput) (model.EmployeeRecord, encoding.Skin, error) {
	_, _, _, skins, err := s.components()
	if err != nil {
		return model.EmployeeRecord{}, encoding.Skin{}, err
	}
	skin, err := skins.Get(in.Skin)
	if err != nil {
		return model.EmployeeRecord{}, encoding.Skin{}, err
	}

	r := model.DefaultRecord()
	for name, v := range in.Numbers {
		if skin.Categorical(name) {
			continue
		}
		r.Set(name, v)
	}
	r, err = skin.Apply(r, in.Selections)
	if err != nil {
		recordEncodeError(err)
		return model.EmployeeRecord{}, skin, err
	}
	return r, skin, nil
}

// PredictForm encodes a form submission and predicts it.
func (s *Service) PredictForm(ctx context.Context, in FormInput) (model.Assessment, model.EmployeeRecord, error) {
	r, _, err := s.BuildRecord(in)
	if err != nil {
		return model.Assessment{}, model.EmployeeRecord{}, err
	}
	a, err := s.Predict(ctx, r)
	return a, r, err
}

// Encode maps selections to codes using the named skin.
func (s *Service) Encode(_ context.Context, skinName string, selections map[string]string) (map[string]int, error) {
	_, _, _, skins, err := s.components()
	if err != nil {
		return nil, err
	}
	skin, err := skins.Get(skinName)
	if err != nil {
		return nil, err
	}
	codes, err := skin.EncodeAll(selections)
	if err != nil {
		recordEncodeError(err)
		return nil, err
	}
	return codes, nil
}

func recordEncodeError(err error) {
	var unknown *encoding.UnknownLabelError
	if errors.As(err, &unknown) {
		metrics.RecordEncodeError(unknown.Field)
	}
}
