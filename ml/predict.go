package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"
)

// MaxWeight is the heaviest vehicle, in pounds, the form path accepts.
const MaxWeight = 10000.0

// Band edges on the rounded prediction: [0,15) low, [15,25) medium, [25,∞) high.
const (
	mediumFloor = 15.0
	highFloor   = 25.0
)

// Interpretation is the qualitative band of a predicted MPG.
type Interpretation int

const (
	InterpretationLow Interpretation = iota
	InterpretationMedium
	InterpretationHigh
)

func (i Interpretation) String() string {
	switch i {
	case InterpretationLow:
		return "low"
	case InterpretationMedium:
		return "medium"
	case InterpretationHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Color is the tag the browser form uses to style the band.
func (i Interpretation) Color() string {
	switch i {
	case InterpretationLow:
		return "red"
	case InterpretationMedium:
		return "orange"
	default:
		return "green"
	}
}

func (i Interpretation) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// Classify bands a rounded MPG value.
func Classify(predictedMPG float64) Interpretation {
	switch {
	case predictedMPG < mediumFloor:
		return InterpretationLow
	case predictedMPG < highFloor:
		return InterpretationMedium
	default:
		return InterpretationHigh
	}
}

// ModelInfo exposes the parameters behind a prediction, rounded to 4 places.
type ModelInfo struct {
	Intercept   float64 `json:"intercept"`
	Coefficient float64 `json:"coefficient"`
}

// RawPrediction is the unclassified outcome returned to API clients.
type RawPrediction struct {
	Weight       float64   `json:"weight"`
	PredictedMPG float64   `json:"predicted_mpg"`
	ModelInfo    ModelInfo `json:"model_info"`
}

// PredictionResult is a validated, classified prediction.
type PredictionResult struct {
	RawPrediction
	Interpretation Interpretation `json:"interpretation"`
	// Label is the localised description of Interpretation.
	Label string `json:"label"`
}

// ParameterProvider is the read side of ModelStore.
type ParameterProvider interface {
	Get() (ModelParameters, error)
}

// PredictionService validates weights and evaluates the linear model. It
// holds no per-request state and is safe for concurrent use.
type PredictionService struct {
	params ParameterProvider
	msgs   Messages
}

func NewPredictionService(params ParameterProvider, msgs Messages) *PredictionService {
	return &PredictionService{params: params, msgs: msgs}
}

// Messages returns the localiser the service reports errors with.
func (s *PredictionService) Messages() Messages {
	return s.msgs
}

// Predict runs the full form contract: parse, range check, evaluate and
// classify. Any failure is a *PredictionError.
func (s *PredictionService) Predict(raw interface{}) (*PredictionResult, error) {
	weight, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	if weight <= 0 {
		return nil, s.fail(KindInvalidInput, s.msgs.sprintf(msgNotPositive), nil)
	}
	if weight > MaxWeight {
		return nil, s.fail(KindOutOfRange, s.msgs.sprintf(msgTooHeavy, int(MaxWeight)), nil)
	}

	pred, err := s.evaluate(weight)
	if err != nil {
		return nil, err
	}

	band := Classify(pred.PredictedMPG)
	return &PredictionResult{
		RawPrediction:  *pred,
		Interpretation: band,
		Label:          s.Label(band),
	}, nil
}

// PredictRaw is the reduced API contract: no upper bound and no
// classification.
func (s *PredictionService) PredictRaw(raw interface{}) (*RawPrediction, error) {
	weight, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	if weight <= 0 {
		return nil, s.fail(KindInvalidInput, s.msgs.sprintf(msgNotPositive), nil)
	}
	return s.evaluate(weight)
}

// Label returns the localised text of a band.
func (s *PredictionService) Label(i Interpretation) string {
	switch i {
	case InterpretationLow:
		return s.msgs.sprintf(labelLow)
	case InterpretationMedium:
		return s.msgs.sprintf(labelMedium)
	default:
		return s.msgs.sprintf(labelHigh)
	}
}

// InvalidInput builds the malformed-number error for callers that reject a
// request before it reaches Predict, e.g. an unreadable body.
func (s *PredictionService) InvalidInput(cause error) error {
	return s.fail(KindInvalidInput, s.msgs.sprintf(msgInvalidNumber), cause)
}

func (s *PredictionService) parse(raw interface{}) (float64, error) {
	weight, err := ParseWeight(raw)
	if err != nil {
		return 0, s.InvalidInput(err)
	}
	return weight, nil
}

func (s *PredictionService) evaluate(weight float64) (pred *RawPrediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			pred = nil
			err = s.fail(KindInternal, s.msgs.sprintf(msgInternal, "evaluation failed"),
				fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	params, err := s.params.Get()
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			return nil, s.fail(KindModelUnavailable, s.msgs.sprintf(msgModelUnavailable), err)
		}
		return nil, s.fail(KindInternal, s.msgs.sprintf(msgInternal, "model read failed"), err)
	}

	mpg := params.Evaluate(weight)
	if math.IsNaN(mpg) || math.IsInf(mpg, 0) {
		return nil, s.fail(KindInternal, s.msgs.sprintf(msgInternal, "prediction is not a number"),
			fmt.Errorf("non-finite prediction %v for weight %v", mpg, weight))
	}

	return &RawPrediction{
		Weight:       weight,
		PredictedMPG: Round(mpg, 2),
		ModelInfo: ModelInfo{
			Intercept:   Round(params.Intercept, 4),
			Coefficient: Round(params.Coefficient, 4),
		},
	}, nil
}

func (s *PredictionService) fail(kind ErrorKind, msg string, cause error) *PredictionError {
	return &PredictionError{Kind: kind, Message: msg, cause: cause}
}

// ParseWeight coerces a form string, a JSON number/string or any Go numeric
// value to a finite float64.
func ParseWeight(raw interface{}) (float64, error) {
	var w float64
	switch v := raw.(type) {
	case string:
		f, err := parseDecimal(v)
		if err != nil {
			return 0, err
		}
		w = f
	case json.Number:
		f, err := parseDecimal(v.String())
		if err != nil {
			return 0, err
		}
		w = f
	case nil:
		return 0, errors.New("weight is missing")
	default:
		rv := reflect.ValueOf(raw)
		switch {
		case rv.CanFloat():
			w = rv.Float()
		case rv.CanInt():
			w = float64(rv.Int())
		case rv.CanUint():
			w = float64(rv.Uint())
		default:
			return 0, fmt.Errorf("weight has unsupported type %T", raw)
		}
	}
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, fmt.Errorf("weight %v is not finite", w)
	}
	return w, nil
}

// parseDecimal accepts decimal notation only; strconv would also take hex
// floats such as "0x1p12".
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimLeft(s, "+-")
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, fmt.Errorf("weight %q is not a decimal number", s)
	}
	return strconv.ParseFloat(s, 64)
}

// Round rounds x to the given number of decimal places, half to even on the
// exact binary value.
func Round(x float64, places int) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return v
}
