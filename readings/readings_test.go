package readings_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tidepool-org/glucose-alerts/readings"
	readingsTest "github.com/tidepool-org/glucose-alerts/readings/test"
)

var _ = Describe("Aggregator", func() {
	var ctrl *gomock.Controller
	var manual *readingsTest.MockSource
	var entries *readingsTest.MockSource
	var decryptor *readingsTest.MockDecryptor
	var logs *observer.ObservedLogs
	var aggregator *readings.Aggregator

	userId := "1234567890"
	now := time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)
	since := now.Add(-4 * time.Hour)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		manual = readingsTest.NewMockSource(ctrl)
		manual.EXPECT().Name().Return("reading").AnyTimes()
		entries = readingsTest.NewMockSource(ctrl)
		entries.EXPECT().Name().Return("entry").AnyTimes()
		decryptor = readingsTest.NewMockDecryptor(ctrl)

		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		aggregator = readings.NewAggregator(readings.AggregatorParams{
			Sources:   []readings.Source{manual, entries},
			Decryptor: decryptor,
			Logger:    zap.New(core).Sugar(),
		})
	})

	It("merges both sources ordered by time", func() {
		manual.EXPECT().List(gomock.Any(), userId, since).Return([]readings.Record{
			{Id: "r1", Source: "reading", Ciphertext: "c-260", Time: now.Add(-time.Hour)},
		}, nil)
		entries.EXPECT().List(gomock.Any(), userId, since).Return([]readings.Record{
			{Id: "e1", Source: "entry", Ciphertext: "c-270", Time: now.Add(-3 * time.Hour)},
			{Id: "e2", Source: "entry", Ciphertext: "c-120", Time: now.Add(-30 * time.Minute)},
		}, nil)
		decryptor.EXPECT().Decrypt("c-260").Return(260.0, nil)
		decryptor.EXPECT().Decrypt("c-270").Return(270.0, nil)
		decryptor.EXPECT().Decrypt("c-120").Return(120.0, nil)

		result, err := aggregator.Since(context.Background(), userId, since)
		Expect(err).ToNot(HaveOccurred())
		Expect(result).To(HaveLen(3))
		Expect(result[0].Id).To(Equal("e1"))
		Expect(result[0].Value).To(Equal(270.0))
		Expect(result[1].Id).To(Equal("r1"))
		Expect(result[1].Source).To(Equal("reading"))
		Expect(result[2].Id).To(Equal("e2"))
	})

	It("skips records that cannot be decrypted", func() {
		manual.EXPECT().List(gomock.Any(), userId, since).Return([]readings.Record{
			{Id: "r1", Ciphertext: "tampered", Time: now.Add(-time.Hour)},
			{Id: "r2", Ciphertext: "c-280", Time: now.Add(-2 * time.Hour)},
		}, nil)
		entries.EXPECT().List(gomock.Any(), userId, since).Return(nil, nil)
		decryptor.EXPECT().Decrypt("tampered").Return(0.0, readings.ErrDecryption)
		decryptor.EXPECT().Decrypt("c-280").Return(280.0, nil)

		result, err := aggregator.Since(context.Background(), userId, since)
		Expect(err).ToNot(HaveOccurred())
		Expect(result).To(HaveLen(1))
		Expect(result[0].Id).To(Equal("r2"))
		Expect(logs.FilterMessage("skipping reading that could not be decrypted").Len()).To(Equal(1))
	})

	It("fails when a source cannot be listed", func() {
		manual.EXPECT().List(gomock.Any(), userId, since).Return(nil, errors.New("connection refused"))

		_, err := aggregator.Since(context.Background(), userId, since)
		Expect(err).To(MatchError(ContainSubstring("unable to list reading readings")))
	})

	It("breaks ties by source and id", func() {
		at := now.Add(-time.Hour)
		manual.EXPECT().List(gomock.Any(), userId, since).Return([]readings.Record{
			{Id: "b", Ciphertext: "x", Time: at},
		}, nil)
		entries.EXPECT().List(gomock.Any(), userId, since).Return([]readings.Record{
			{Id: "a", Ciphertext: "x", Time: at},
		}, nil)
		decryptor.EXPECT().Decrypt("x").Return(200.0, nil).Times(2)

		result, err := aggregator.Since(context.Background(), userId, since)
		Expect(err).ToNot(HaveOccurred())
		Expect(result[0].Source).To(Equal("entry"))
		Expect(result[1].Source).To(Equal("reading"))
	})
})
