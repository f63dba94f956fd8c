// Package persistence stores the activity list as one value of a key-value store.
package persistence

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/activitylog/internal/domain"
	"example.com/activitylog/internal/observability"
)

// ActivitiesKey is the fixed key holding the full activity list.
const ActivitiesKey = "listaActividades"

// ErrCorruptValue is returned when the stored value is not a list of records.
var ErrCorruptValue = errors.New("stored activity list is corrupt")

// KeyValue is the storage capability the ActivityStore writes through.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ActivityStore loads and saves the whole activity list under ActivitiesKey.
type ActivityStore struct {
	kv KeyValue
}

var _ domain.Store = (*ActivityStore)(nil)

// NewActivityStore constructs an ActivityStore.
func NewActivityStore(kv KeyValue) *ActivityStore {
	return &ActivityStore{kv: kv}
}

// Load returns the stored list. A missing or empty value is an empty list.
func (s *ActivityStore) Load(ctx context.Context) ([]domain.Activity, error) {
	raw, ok, err := s.kv.Get(ctx, ActivitiesKey)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", ActivitiesKey)
	}
	if !ok {
		return []domain.Activity{}, nil
	}

	items, assigned, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if assigned > 0 {
		// Ids handed out on load must survive to the next process.
		if err := s.Save(ctx, items); err != nil {
			return nil, errors.Wrap(err, "persist assigned ids")
		}
		log.Info().Int("count", assigned).Msg("assigned ids to stored activities without one")
	}
	return items, nil
}

// Save overwrites the stored list with items.
func (s *ActivityStore) Save(ctx context.Context, items []domain.Activity) (err error) {
	start := time.Now()
	defer func() { observability.ObserveSave(start, err) }()

	raw, err := Encode(items)
	if err != nil {
		return err
	}
	if err = s.kv.Set(ctx, ActivitiesKey, raw); err != nil {
		return errors.Wrapf(err, "set %s", ActivitiesKey)
	}
	return nil
}

type record struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"tipo"`
	Duration flexDuration `json:"duracion"`
	Date     flexDate     `json:"fecha"`
}

// Encode serialises items to the stored wire shape.
func Encode(items []domain.Activity) ([]byte, error) {
	records := make([]record, 0, len(items))
	for _, a := range items {
		records = append(records, record{
			ID:       a.ID,
			Type:     a.Type,
			Duration: flexDuration(a.DurationMin),
			Date:     flexDate(a.Date),
		})
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, errors.Wrap(err, "encode activities")
	}
	return raw, nil
}

// Decode parses a stored value. Field values are taken as they are; records
// written without an id get a fresh one.
func Decode(raw []byte) ([]domain.Activity, error) {
	items, _, err := decode(raw)
	return items, err
}

// decode also reports how many records were given a new id.
func decode(raw []byte) ([]domain.Activity, int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.Activity{}, 0, nil
	}

	var records []record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, 0, errors.Wrapf(ErrCorruptValue, "decode: %v", err)
	}

	items := make([]domain.Activity, 0, len(records))
	assigned := 0
	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
			assigned++
		}
		items = append(items, domain.Activity{
			ID:          id,
			Type:        r.Type,
			DurationMin: float64(r.Duration),
			Date:        domain.Date(r.Date),
		})
	}
	return items, assigned, nil
}

// flexDuration decodes a number or a numeric string. Anything else is zero.
type flexDuration float64

func (d flexDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(d))
}

func (d *flexDuration) UnmarshalJSON(data []byte) error {
	*d = 0
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		*d = flexDuration(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			*d = flexDuration(f)
		}
	}
	return nil
}

// flexDate decodes YYYY-MM-DD or an RFC3339 timestamp. Anything else is the zero date.
type flexDate domain.Date

func (d flexDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(domain.FormatDateForInput(domain.Date(d)))
}

func (d *flexDate) UnmarshalJSON(data []byte) error {
	*d = flexDate{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if parsed, err := domain.ParseDate(s); err == nil {
		*d = flexDate(parsed)
	}
	return nil
}
