package users_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	storeTest "github.com/tidepool-org/glucose-alerts/store/test"
	"github.com/tidepool-org/glucose-alerts/test"
	"github.com/tidepool-org/glucose-alerts/users"
)

var _ = Describe("Users Repository", func() {
	var repo users.Repository
	var collection *mongo.Collection

	BeforeEach(func() {
		database := storeTest.GetTestDatabase()
		collection = database.Collection(users.CollectionName)
		lifecycle := fxtest.NewLifecycle(GinkgoT())

		var err error
		repo, err = users.NewRepository(database, zap.NewNop().Sugar(), lifecycle)
		Expect(err).ToNot(HaveOccurred())
		lifecycle.RequireStart()
	})

	AfterEach(func() {
		_, _ = collection.DeleteMany(context.Background(), bson.M{})
	})

	It("returns the recipient profile", func() {
		userId := test.RandomUserId()
		email := test.Faker.Internet().Email()
		_, err := collection.InsertOne(context.Background(), bson.M{
			"userId":   userId,
			"email":    email,
			"timezone": "America/Chicago",
		})
		Expect(err).ToNot(HaveOccurred())

		user, err := repo.Get(context.Background(), userId)
		Expect(err).ToNot(HaveOccurred())
		Expect(user.Email).To(Equal(email))
		Expect(user.Timezone).To(Equal("America/Chicago"))
		Expect(user.FullName).To(BeNil())
	})

	It("returns not found for unknown users", func() {
		_, err := repo.Get(context.Background(), test.RandomUserId())
		Expect(err).To(MatchError(users.ErrNotFound))
	})
})
