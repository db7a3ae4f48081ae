package readings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/metrics"
)

// ErrDecryption is returned by decryptors for malformed or tampered ciphertexts.
var ErrDecryption = errors.New("unable to decrypt glucose value")

// Record is a stored glucose measurement whose value is still encrypted.
type Record struct {
	Id         string
	Source     string
	Ciphertext string
	Time       time.Time
}

// HistoricalReading is a decrypted glucose measurement.
type HistoricalReading struct {
	Id     string
	Source string
	Value  float64
	Time   time.Time
}

//go:generate mockgen -source=./readings.go -destination=./test/mock_readings.go -package test

// Source lists the records of a user recorded at or after since.
type Source interface {
	Name() string
	List(ctx context.Context, userId string, since time.Time) ([]Record, error)
}

type Decryptor interface {
	Decrypt(ciphertext string) (float64, error)
}

type Aggregator struct {
	sources   []Source
	decryptor Decryptor
	logger    *zap.SugaredLogger
}

type AggregatorParams struct {
	fx.In

	Sources   []Source `group:"readingSources"`
	Decryptor Decryptor
	Logger    *zap.SugaredLogger
}

func NewAggregator(p AggregatorParams) *Aggregator {
	return &Aggregator{
		sources:   p.Sources,
		decryptor: p.Decryptor,
		logger:    p.Logger,
	}
}

// Since returns the decrypted readings of the user from every source recorded at or after
// since, ordered by time. Records that cannot be decrypted are skipped.
func (a *Aggregator) Since(ctx context.Context, userId string, since time.Time) ([]HistoricalReading, error) {
	var result []HistoricalReading
	for _, source := range a.sources {
		records, err := source.List(ctx, userId, since)
		if err != nil {
			return nil, fmt.Errorf("unable to list %s readings: %w", source.Name(), err)
		}

		for _, record := range records {
			value, err := a.decryptor.Decrypt(record.Ciphertext)
			if err != nil {
				metrics.ReadingsSkippedTotal.WithLabelValues(source.Name()).Inc()
				a.logger.Warnw("skipping reading that could not be decrypted",
					"userId", userId,
					"source", source.Name(),
					"readingId", record.Id,
					zap.Error(err),
				)
				continue
			}

			result = append(result, HistoricalReading{
				Id:     record.Id,
				Source: source.Name(),
				Value:  value,
				Time:   record.Time,
			})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Time.Equal(result[j].Time) {
			return result[i].Time.Before(result[j].Time)
		}
		if result[i].Source != result[j].Source {
			return result[i].Source < result[j].Source
		}
		return result[i].Id < result[j].Id
	})

	return result, nil
}
