package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// ListeningPortKey is the port where the HTTP interface will listen on
	ListeningPortKey = "LISTENING_PORT"
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// LocalDomainKey is the tag of the execution domain the daemon lives in,
	// used to tell the direction of a swap
	LocalDomainKey = "LOCAL_DOMAIN"
	// OwnerKey is the identity allowed to pause and unpause the service
	OwnerKey = "OWNER"
	// GatewayTypeKey is used to switch funds gateway between those supported
	GatewayTypeKey = "GATEWAY_TYPE"
	// GatewayAddrKey is the websocket url of the custody service
	GatewayAddrKey = "GATEWAY_ADDR"
	// GatewayRateLimitKey is the max number of requests per second sent to the
	// custody service
	GatewayRateLimitKey = "GATEWAY_RATE_LIMIT"
	// GatewayAutoSettleKey makes the inmemory gateway settle transfers
	// automatically
	GatewayAutoSettleKey = "GATEWAY_AUTO_SETTLE"
	// HashFunctionKey is the hash function used for escrow ids and secret
	// commitments
	HashFunctionKey = "HASH_FUNCTION"
	// AuthSecretKey is the HMAC secret used to verify the bearer tokens of the
	// callers. If not set, the caller identity is read from the X-Caller-Id
	// header
	AuthSecretKey = "AUTH_SECRET"
	// ReconcileIntervalKey is the interval in seconds between two checks of
	// the pending transitions
	ReconcileIntervalKey = "RECONCILE_INTERVAL"
	// StatsIntervalKey defines interval in seconds for printing basic
	// statistics, 0 disables them
	StatsIntervalKey = "STATS_INTERVAL"
	// WebhookTimeoutKey is the timeout in seconds of webhook notifications
	WebhookTimeoutKey = "WEBHOOK_TIMEOUT"

	DbLocation       = "db"
	ProfilerLocation = "stats"

	DBBadger   = "badger"
	DBInmemory = "inmemory"

	GatewayInmemory  = "inmemory"
	GatewayWebsocket = "websocket"

	HashSha256 = "sha256"
	HashBlake3 = "blake3"
)

var (
	vip            *viper.Viper
	defaultDatadir = btcutil.AppDataDir("escrowd", false)

	supportedDBs      = []string{DBBadger, DBInmemory}
	supportedGateways = []string{GatewayInmemory, GatewayWebsocket}
	supportedHashes   = []string{HashSha256, HashBlake3}
)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("ESCROW")
	vip.AutomaticEnv()

	vip.SetDefault(ListeningPortKey, 9945)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, int(log.InfoLevel))
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(LocalDomainKey, "local")
	vip.SetDefault(GatewayTypeKey, GatewayInmemory)
	vip.SetDefault(GatewayRateLimitKey, 50)
	vip.SetDefault(GatewayAutoSettleKey, true)
	vip.SetDefault(HashFunctionKey, HashSha256)
	vip.SetDefault(ReconcileIntervalKey, 30)
	vip.SetDefault(StatsIntervalKey, 0)
	vip.SetDefault(WebhookTimeoutKey, 15)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetSeconds returns the value of the given key, expressed in seconds, as a
// duration.
func GetSeconds(key string) time.Duration {
	return time.Duration(GetInt(key)) * time.Second
}

// GetDbDir returns the directory of the database, empty if it is kept in
// memory.
func GetDbDir() string {
	if GetString(DBTypeKey) == DBInmemory {
		return ""
	}
	return filepath.Join(GetDatadir(), DbLocation)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if port := GetInt(ListeningPortKey); port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be in range [1, 65535]", ListeningPortKey)
	}

	logLevel := GetInt(LogLevelKey)
	if logLevel < int(log.PanicLevel) || logLevel > int(log.TraceLevel) {
		return fmt.Errorf(
			"%s must be in range [%d, %d]",
			LogLevelKey, log.PanicLevel, log.TraceLevel,
		)
	}

	if err := validateEnum(DBTypeKey, supportedDBs); err != nil {
		return err
	}
	if err := validateEnum(GatewayTypeKey, supportedGateways); err != nil {
		return err
	}
	if err := validateEnum(HashFunctionKey, supportedHashes); err != nil {
		return err
	}

	if len(strings.TrimSpace(GetString(LocalDomainKey))) <= 0 {
		return fmt.Errorf("missing local domain")
	}
	if len(strings.TrimSpace(GetString(OwnerKey))) <= 0 {
		return fmt.Errorf("missing owner")
	}

	if GetString(GatewayTypeKey) == GatewayWebsocket {
		addr := GetString(GatewayAddrKey)
		if len(addr) <= 0 {
			return fmt.Errorf("missing gateway address")
		}
		u, err := url.Parse(addr)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("gateway address must be a valid ws(s) url")
		}
	}
	if GetInt(GatewayRateLimitKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", GatewayRateLimitKey)
	}

	if GetInt(ReconcileIntervalKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", ReconcileIntervalKey)
	}
	if GetInt(StatsIntervalKey) < 0 {
		return fmt.Errorf("%s must not be negative", StatsIntervalKey)
	}
	if GetInt(WebhookTimeoutKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", WebhookTimeoutKey)
	}

	return nil
}

func validateEnum(key string, supported []string) error {
	value := GetString(key)
	for _, s := range supported {
		if value == s {
			return nil
		}
	}
	return fmt.Errorf(
		"%s must be one of %s, got %s", key, strings.Join(supported, ", "), value,
	)
}

func initDatadir() error {
	datadir := GetDatadir()
	if GetString(DBTypeKey) != DBInmemory {
		if err := makeDirectoryIfNotExists(
			filepath.Join(datadir, DbLocation),
		); err != nil {
			return err
		}
	}

	if GetInt(StatsIntervalKey) > 0 {
		if err := makeDirectoryIfNotExists(
			filepath.Join(datadir, ProfilerLocation),
		); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
