package redemptions

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/edurewards/edurewards-backend/pkg/config"
	pkgredis "github.com/edurewards/edurewards-backend/pkg/redis"
)

// SelectStore picks the record store named by the feature flags. SQL is the default;
// the redis backend needs a connected client.
func SelectStore(flags config.FeatureFlagsConfig, db *gorm.DB, redisClient *pkgredis.Client, lockTTL time.Duration) (Store, error) {
	if flags.UsesRedisStore() {
		if redisClient == nil {
			return nil, fmt.Errorf("store backend %q requires redis to be configured", config.StoreBackendRedis)
		}
		return NewRedisStore(redisClient, lockTTL)
	}
	if db == nil {
		return nil, fmt.Errorf("store backend %q requires a database", config.StoreBackendSQL)
	}
	return NewRepository(db), nil
}
