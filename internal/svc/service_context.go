package svc

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"

	"grant-settlement-sol/internal/chain"
	"grant-settlement-sol/internal/config"
	"grant-settlement-sol/internal/ledger"
	"grant-settlement-sol/internal/logic/grant"
	"grant-settlement-sol/internal/mq"
	"grant-settlement-sol/internal/pkg/logger"
	pkgmq "grant-settlement-sol/internal/pkg/mq"
	"grant-settlement-sol/internal/pkg/xredis"
	"grant-settlement-sol/internal/settlement"
	"grant-settlement-sol/internal/settlement/lock"
	"grant-settlement-sol/internal/types"
	"grant-settlement-sol/internal/verify"
)

const producerFlushTimeoutMs = 5000

// ServiceContext settle 服务共享的资源
type ServiceContext struct {
	Config config.Config
	Grant  *grant.Service

	rdb      redis.UniversalClient
	db       *sql.DB
	producer *kafka.Producer
}

// NewServiceContext 按配置装配依赖；admin 为出资账户 keypair
func NewServiceContext(c config.Config, admin sdktypes.Account) (*ServiceContext, error) {
	sc := &ServiceContext{Config: c}
	ok := false
	defer func() {
		if !ok {
			sc.Close()
		}
	}()

	mint, err := c.Token.MintPubkey()
	if err != nil {
		return nil, fmt.Errorf("token mint: %w", err)
	}
	engineOpt, err := c.Token.ToEngineOption(c.Solana.PollIntervalMs)
	if err != nil {
		return nil, err
	}

	// 1. 出资账户锁与在途记录：配置了 Redis 才能多实例部署
	var (
		locker lock.Locker
		guard  ledger.Guard
	)
	if c.UseRedis() {
		if sc.rdb, err = xredis.NewClient(c.Redis); err != nil {
			return nil, err
		}
		locker = lock.NewRedsyncLocker(sc.rdb, c.Lock.ToRedsyncOption())
		guard = ledger.NewRedisGuard(sc.rdb)
	} else {
		logger.Warnf("[svc] redis not configured, using in-process lock and guard (single instance only)")
		locker = lock.NewLocalLocker()
		guard = ledger.NewMemoryGuard()
	}

	// 2. 结算引擎
	engine := settlement.NewEngine(chain.NewSolanaClient(c.Solana.ToClientOption()), locker, engineOpt)

	// 3. 申请存储
	store, err := sc.newStore(engine, mint)
	if err != nil {
		return nil, err
	}

	// 4. 事件发布
	var publisher mq.Publisher = mq.NopPublisher{}
	if c.KafkaProducer.Enabled() {
		if sc.producer, err = pkgmq.NewKafkaProducer(c.KafkaProducer.ToKafkaOption()); err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		publisher = mq.NewKafkaPublisher(sc.producer, c.KafkaProducer.ToPublisherOption())
	}

	sc.Grant = grant.NewService(grant.Deps{
		Engine:    engine,
		Store:     store,
		Guard:     guard,
		Verifier:  verify.NewClient(c.Verify.ToVerifyOption()),
		Publisher: publisher,
	}, grant.Option{
		Mint:            mint,
		Admin:           admin,
		RetryAttempts:   c.Retry.MaxAttempts,
		RetryBaseDelay:  c.Retry.BaseDelay(),
		StaleGuardAfter: time.Duration(c.Reconcile.StaleGuardAfter) * time.Second,
	})

	ok = true
	logger.Infof("[svc] service context ready, admin=%s, mint=%s, ledger=%s", sc.Grant.AdminOwner(), mint, c.LedgerBackend)
	return sc, nil
}

func (sc *ServiceContext) newStore(engine *settlement.Engine, mint types.Pubkey) (ledger.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sc.Config.LedgerBackend == config.LedgerPostgres {
		db, err := ledger.OpenPostgres(ctx, sc.Config.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		sc.db = db
		store := ledger.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}

	store := ledger.NewMemoryStore()
	if sc.Config.SeedDemo {
		student := types.PubkeyFromCommon(sdktypes.NewAccount().PublicKey)
		ata, err := engine.Resolve(student, mint)
		if err != nil {
			return nil, err
		}
		if err := store.SeedDemo(ctx, student.String(), ata.String()); err != nil {
			return nil, err
		}
		logger.Infof("[svc] seeded demo grant requests for student %s", student)
	}
	return store, nil
}

func (sc *ServiceContext) Close() {
	if sc.producer != nil {
		if n := sc.producer.Flush(producerFlushTimeoutMs); n > 0 {
			logger.Warnf("[svc] %d kafka messages not delivered before close", n)
		}
		sc.producer.Close()
	}
	if sc.db != nil {
		_ = sc.db.Close()
	}
	if sc.rdb != nil {
		_ = sc.rdb.Close()
	}
}
