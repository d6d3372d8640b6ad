package leads

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Submission is one persisted lead. It is never updated.
type Submission struct {
	Timestamp          time.Time `json:"timestamp"`
	Name               string    `json:"name"`
	Phone              string    `json:"phone"`
	Email              string    `json:"email"`
	FreeTreatment      bool      `json:"freeTreatment"`
	SelectedToothType  string    `json:"selectedToothType"`
	SelectedToothColor string    `json:"selectedToothColor"`
	OutputImgURL       string    `json:"outputImgUrl"`
}

// Input is what the lead form sends plus what the funnel knows.
type Input struct {
	Name          string
	Phone         string
	CountryCode   string
	Email         string
	FreeTreatment bool
	StyleLabel    string
	ShadeLabel    string
	OutputURL     string
}

// ValidationError maps form fields to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "leads: invalid submission: " + strings.Join(parts, "; ")
}

var phonePattern = regexp.MustCompile(`^[\d\s\-()]+$`)

const minPhoneDigits = 7

// ValidPhone accepts digits, spaces, hyphens and parentheses with at least
// seven digits.
func ValidPhone(phone string) bool {
	if !phonePattern.MatchString(phone) {
		return false
	}
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits
}

func Validate(in Input) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "name is required"
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		fields["phone"] = "phone is required"
	} else if !ValidPhone(phone) {
		fields["phone"] = "please enter a valid phone number"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// FormatPhone prefixes the dial code, e.g. "+1 555-123-4567".
func FormatPhone(countryCode, phone string) string {
	phone = strings.TrimSpace(phone)
	countryCode = strings.TrimSpace(countryCode)
	if countryCode == "" {
		return phone
	}
	return countryCode + " " + phone
}

type Store interface {
	Insert(ctx context.Context, s Submission) error
	List(ctx context.Context) ([]Submission, error)
	Clear(ctx context.Context) error
}

// Sink receives accepted leads for mirroring or notification.
type Sink interface {
	Publish(ctx context.Context, s Submission) error
}

type Service struct {
	store  Store
	sinks  []Sink
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, logger zerolog.Logger, sinks ...Sink) *Service {
	return &Service{
		store:  store,
		sinks:  sinks,
		logger: logger.With().Str("component", "leads").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates in and records it. Only validation fails the call; store
// and sink errors are logged.
func (s *Service) Submit(ctx context.Context, in Input) (*Submission, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	sub := Submission{
		Timestamp:          s.now(),
		Name:               strings.TrimSpace(in.Name),
		Phone:              FormatPhone(in.CountryCode, in.Phone),
		Email:              strings.TrimSpace(in.Email),
		FreeTreatment:      in.FreeTreatment,
		SelectedToothType:  in.StyleLabel,
		SelectedToothColor: in.ShadeLabel,
		OutputImgURL:       in.OutputURL,
	}

	if s.store != nil {
		if err := s.store.Insert(ctx, sub); err != nil {
			s.logger.Error().Err(err).Str("name", sub.Name).Msg("failed to persist lead")
		} else {
			s.logger.Info().Str("name", sub.Name).Msg("lead persisted")
		}
	}

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, sub); err != nil {
			s.logger.Warn().Err(err).Str("sink", fmt.Sprintf("%T", sink)).Msg("failed to publish lead")
		}
	}

	return &sub, nil
}

func (s *Service) List(ctx context.Context) ([]Submission, error) {
	if s.store == nil {
		return []Submission{}, nil
	}
	subs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Timestamp.After(subs[j].Timestamp)
	})
	return subs, nil
}

func (s *Service) Clear(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear leads: %w", err)
	}
	s.logger.Warn().Msg("all leads cleared")
	return nil
}
