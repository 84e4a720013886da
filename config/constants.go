package config

import "time"

/* =========================
   DATABASE CONFIGURATION
========================= */

const (
	PostgresMaxConns        = 25
	PostgresMinConns        = 5
	PostgresMaxConnLifetime = 5 * time.Minute
	PostgresConnectTimeout  = 10 * time.Second
)

/* =========================
   REDIS CONFIGURATION
========================= */

const (
	RedisDialTimeout  = 5 * time.Second
	RedisReadTimeout  = 3 * time.Second
	RedisWriteTimeout = 3 * time.Second
	RedisPoolSize     = 10
	RedisMinIdleConns = 5
)

/* =========================
   REDIS KEYS & TTL
========================= */

const (
	// settle:{bazaarId}:{date}:{session}
	RedisSettleLockKey = "settle:%s:%s:%s"
	SettleLockTTL      = 2 * time.Minute

	RedisDashboardKey = "dashboard:stats"
	DashboardCacheTTL = 30 * time.Second

	RedisBazaarListKey = "bazaars:list"
	BazaarListCacheTTL = 5 * time.Minute

	// login:fail:{username}
	RedisLoginFailKey = "login:fail:%s"
	LoginFailWindow   = 15 * time.Minute
	MaxLoginFailures  = 5
)

/* =========================
   AUTH
========================= */

const (
	AdminSessionName   = "sitara_admin"
	AdminSessionMaxAge = 12 * 60 * 60 // seconds
	DefaultJWTTTL      = 30 * 24 * time.Hour
	JWTIssuer          = "sitara"
	MinPasswordLength  = 6
)

/* =========================
   HTTP & RATE LIMITING
========================= */

const (
	DefaultHTTPAddr   = "0.0.0.0:8080"
	ReadHeaderTimeout = 10 * time.Second
	RequestTimeout    = 30 * time.Second
	ShutdownTimeout   = 15 * time.Second

	// Login and register: 5 requests per minute per IP, burst of 5
	AuthRateInterval = 12 * time.Second
	AuthRateBurst    = 5
	LimiterIdleTTL   = 10 * time.Minute

	DefaultPageSize = 50
	MaxPageSize     = 200
)

/* =========================
   WEBSOCKET
========================= */

const (
	ClientSendBuffer = 256
	BroadcastBuffer  = 100
	WriteWait        = 10 * time.Second
	PongWait         = 60 * time.Second
	PingPeriod       = (PongWait * 9) / 10
	MaxMessageSize   = 4096
)

/* =========================
   BETTING & WALLET DEFAULTS
========================= */

const (
	DefaultMinBet        = "10"
	DefaultMaxBet        = "10000"
	DefaultMinDeposit    = "100"
	DefaultMinWithdrawal = "500"
	MaxBetsPerSlip       = 50
)

/* =========================
   TIME & EXPORT
========================= */

const (
	DefaultTimezone         = "Asia/Kolkata"
	DateLayout              = "2006-01-02"
	ClockLayout             = "15:04"
	DefaultExportResultDays = 30
	MaxResultRangeDays      = 366

	// Cron specs, evaluated in the configured timezone
	MarketRefreshSpec = "* * * * *"
	DailyExportSpec   = "10 0 * * *"
)

/* =========================
   PUSH
========================= */

const (
	BroadcastTopic        = "all"
	TelegramSendInterval  = 2 * time.Second
	TelegramQueueCapacity = 100
)
