//go:build integration

package epoch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mealcard/internal/roster/epoch"
	"mealcard/internal/roster/models"
	"mealcard/pkg/testutil/containers"
)

type RedisGuardSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisGuardSuite(t *testing.T) {
	suite.Run(t, new(RedisGuardSuite))
}

func (s *RedisGuardSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisGuardSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisGuardSuite) TestMarkAndCheck() {
	ctx := context.Background()
	guard := epoch.NewRedisGuard(s.redis.Client, time.Hour)
	key := models.NaturalKey{FullName: "Ivanov I.I.", Group: "G1"}

	marked, err := guard.Reconciled(ctx, key)
	s.Require().NoError(err)
	s.False(marked)

	s.Require().NoError(guard.MarkReconciled(ctx, key))

	marked, err = guard.Reconciled(ctx, key)
	s.Require().NoError(err)
	s.True(marked)

	other, err := guard.Reconciled(ctx, models.NaturalKey{FullName: "Petrov P.P.", Group: "G2"})
	s.Require().NoError(err)
	s.False(other, "marks are per natural key")
}

func (s *RedisGuardSuite) TestMarkExpiresWithEpoch() {
	ctx := context.Background()
	guard := epoch.NewRedisGuard(s.redis.Client, 100*time.Millisecond)
	key := models.NaturalKey{FullName: "Ivanov I.I.", Group: "G1"}

	s.Require().NoError(guard.MarkReconciled(ctx, key))
	time.Sleep(300 * time.Millisecond)

	marked, err := guard.Reconciled(ctx, key)
	s.Require().NoError(err)
	s.False(marked)
}
