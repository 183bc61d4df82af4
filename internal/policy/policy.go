// Package policy holds the parameters that control detection, segmentation
// and silence insertion for one run, and validates them before any file is
// processed.
package policy

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alnah/go-shadowing/internal/detect"
	"github.com/alnah/go-shadowing/internal/stretch"
)

// ErrInvalidPolicy indicates a policy value outside its allowed range.
var ErrInvalidPolicy = errors.New("invalid policy")

// Defaults follow the historical command-line tool.
const (
	DefaultPercentage  = 100.0
	DefaultMinSilence  = 100 * time.Millisecond
	DefaultMinSpeech   = 100 * time.Millisecond
	DefaultThresholdDB = -50.0
	DefaultTarget      = 2 * time.Second
)

// Policy is the full set of tunables for one run. The zero value is not
// valid; start from Default.
type Policy struct {
	Percentage float64       `flag:"percentage" validate:"gte=0,lte=1000"`
	MinSilence time.Duration `flag:"min-silence" validate:"gte=1ms,lte=1m"`
	MinSpeech  time.Duration `flag:"min-speech" validate:"gte=0"`
	// MaxSpeech disables insertion after chunks at least this long; 0 is off.
	MaxSpeech time.Duration `flag:"max-speech" validate:"gte=0"`

	ThresholdDB   float64       `flag:"threshold" validate:"gte=-120,lte=0"`
	AutoThreshold bool          `flag:"auto"`
	TargetChunk   time.Duration `flag:"target" validate:"omitempty,gte=100ms"`

	Reference stretch.Reference `flag:"reference" validate:"oneof=chunk gap"`
	KeepGaps  bool              `flag:"keep-gaps"`
	Detector  detect.Kind       `flag:"detector" validate:"oneof=amplitude ffmpeg"`
}

// Default returns the policy used when no flag or config value overrides it.
func Default() Policy {
	return Policy{
		Percentage:  DefaultPercentage,
		MinSilence:  DefaultMinSilence,
		MinSpeech:   DefaultMinSpeech,
		ThresholdDB: DefaultThresholdDB,
		TargetChunk: DefaultTarget,
		Reference:   stretch.ReferenceChunk,
		Detector:    detect.KindAmplitude,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report flag names so messages match what the user typed.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("flag"); name != "" {
			return name
		}
		return f.Name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(Policy)
		if p.AutoThreshold && p.TargetChunk == 0 {
			sl.ReportError(p.TargetChunk, "target", "TargetChunk", "required_with_auto", "")
		}
		if p.MaxSpeech > 0 && p.MaxSpeech < p.MinSpeech {
			sl.ReportError(p.MaxSpeech, "max-speech", "MaxSpeech", "gtefield", "min-speech")
		}
	}, Policy{})
	return v
}

// Validate reports every out-of-range value, wrapped in ErrInvalidPolicy.
func (p Policy) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(msgs, "; "))
}

// describe turns a validation failure into a flag-oriented message.
func describe(fe validator.FieldError) string {
	name := "--" + fe.Field()
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", name, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", name, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "required_with_auto":
		return fmt.Sprintf("%s is required with --auto", name)
	case "gtefield":
		return fmt.Sprintf("%s must not be shorter than --%s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}

// Params returns the detector parameters for threshold.
func (p Policy) Params(thresholdDB float64) detect.Params {
	return detect.Params{ThresholdDB: thresholdDB, MinSilence: p.MinSilence}
}

// Stretch returns the reconstruction options.
func (p Policy) Stretch() stretch.Options {
	return stretch.Options{
		Percentage: p.Percentage,
		MaxSpeech:  p.MaxSpeech,
		Reference:  p.Reference,
		KeepGaps:   p.KeepGaps,
	}
}
