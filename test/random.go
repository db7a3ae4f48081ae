package test

import (
	"math"
	"math/rand"

	"github.com/jaswdr/faker"
	"github.com/onsi/ginkgo/v2"
)

var (
	Faker  = faker.NewWithSeed(Source)
	Rand   = rand.New(Source)
	Source = rand.NewSource(ginkgo.GinkgoRandomSeed())
)

func RandomUserId() string {
	return Faker.UUID().V4()
}

// RandomGlucoseValue returns a value in mg/dL in [min, max) rounded to one decimal
func RandomGlucoseValue(min, max float64) float64 {
	return math.Round((min+Rand.Float64()*(max-min))*10) / 10
}
